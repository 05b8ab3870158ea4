// Package yml wraps yaml.v3 nodes for lenient, hand written documents.
package yml

import (
	"errors"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotMapping is returned when a document is not a key/value mapping.
var ErrNotMapping = errors.New("yml: document is not a mapping")

type Node yaml.Node

// Parse decodes a mapping document, unwrapping the document node.
func Parse(data []byte) (*Node, error) {
	doc := &yaml.Node{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}
	return (*Node)(doc), nil
}

// Lookup returns the value of a mapping key. Keys match case-insensitively
// with spaces, dashes and underscores ignored, so "Display Name" finds
// displayName.
func (n *Node) Lookup(name string) *Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	name = fold(name)
	for i := 0; i+1 < len(n.Content); i += 2 {
		if fold(n.Content[i].Value) == name {
			return (*Node)(n.Content[i+1])
		}
	}
	return nil
}

// Pairs iterates mapping entries in document order.
func (n *Node) Pairs(callback func(key string, node *Node) error) error {
	if n == nil || n.Kind != yaml.MappingNode {
		return ErrNotMapping
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := callback(n.Content[i].Value, (*Node)(n.Content[i+1])); err != nil {
			return err
		}
	}
	return nil
}

// Scalar returns the trimmed scalar value, or "" for other nodes.
func (n *Node) Scalar() string {
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return ""
	}
	return strings.TrimSpace(n.Value)
}

// Strings returns a sequence of scalars, or a comma separated scalar, as a
// string slice.
func (n *Node) Strings() []string {
	if n == nil {
		return nil
	}
	var items []string
	switch n.Kind {
	case yaml.ScalarNode:
		items = strings.Split(n.Scalar(), ",")
	case yaml.SequenceNode:
		for _, item := range n.Content {
			items = append(items, item.Value)
		}
	}
	var ret []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			ret = append(ret, item)
		}
	}
	return ret
}

func fold(key string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "-", "", "_", "").Replace(key))
}
