package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/viant/ulma/internal/yml"
)

// Directory actions.
const (
	ActionLookup = "lookup"
	ActionCreate = "create"
	ActionModify = "modify"
	ActionDelete = "delete"
)

var actionVerbs = []struct {
	action string
	verbs  []string
}{
	{action: ActionDelete, verbs: []string{"delete", "offboard", "remove", "offload", "terminate"}},
	{action: ActionCreate, verbs: []string{"create", "onboard", "add user", "new user", "hire"}},
	{action: ActionModify, verbs: []string{"modify", "update", "grant", "change", "promote", "move"}},
	{action: ActionLookup, verbs: []string{"lookup", "look up", "check", "find", "show"}},
}

// Request is a user lifecycle request.
type Request struct {
	Goal        string   `json:"goal" yaml:"goal"`
	Action      string   `json:"action,omitempty" yaml:"action,omitempty"`
	User        string   `json:"user" yaml:"user"`
	DisplayName string   `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Role        string   `json:"role,omitempty" yaml:"role,omitempty"`
	Groups      []string `json:"groups,omitempty" yaml:"groups,omitempty"`
	Apps        []string `json:"apps,omitempty" yaml:"apps,omitempty"`
	Location    string   `json:"location,omitempty" yaml:"location,omitempty"`
	Manager     string   `json:"manager,omitempty" yaml:"manager,omitempty"`
}

// Missing names the mandatory fields that are empty.
func (r *Request) Missing() []string {
	var missing []string
	if strings.TrimSpace(r.Goal) == "" {
		missing = append(missing, "goal")
	}
	if strings.TrimSpace(r.User) == "" {
		missing = append(missing, "user")
	}
	return missing
}

// Normalize derives Action from Goal when absent.
func (r *Request) Normalize() {
	r.Goal = strings.TrimSpace(r.Goal)
	r.User = strings.TrimSpace(r.User)
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	if r.Action == "" {
		r.Action = Classify(r.Goal)
	}
}

// Classify maps free text onto a directory action, defaulting to lookup.
func Classify(text string) string {
	text = strings.ToLower(text)
	for _, candidate := range actionVerbs {
		for _, verb := range candidate.verbs {
			if strings.Contains(text, verb) {
				return candidate.action
			}
		}
	}
	return ActionLookup
}

// ParseRequest reads a request from JSON, from "key: value" YAML, or from a
// free text sentence where the user is the first token containing '@'.
func ParseRequest(text string) (*Request, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty request")
	}
	request := &Request{}
	if strings.HasPrefix(text, "{") {
		if err := validateRequestJSON([]byte(text)); err != nil {
			return nil, fmt.Errorf("invalid request JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(text), request); err != nil {
			return nil, fmt.Errorf("invalid request JSON: %w", err)
		}
		request.Normalize()
		return request, nil
	}
	if strings.Contains(text, ":") && strings.Contains(text, "\n") {
		if node, err := yml.Parse([]byte(text)); err == nil {
			if parsed := requestFromNode(node); parsed.Goal != "" || parsed.User != "" {
				parsed.Normalize()
				return parsed, nil
			}
		}
	}
	request.Goal = text
	for _, token := range strings.Fields(text) {
		token = strings.Trim(token, ".,;:!?()\"'")
		if strings.Contains(token, "@") {
			request.User = token
			break
		}
	}
	request.Normalize()
	return request, nil
}

func requestFromNode(node *yml.Node) *Request {
	return &Request{
		Goal:        node.Lookup("goal").Scalar(),
		Action:      node.Lookup("action").Scalar(),
		User:        node.Lookup("user").Scalar(),
		DisplayName: node.Lookup("displayName").Scalar(),
		Role:        node.Lookup("role").Scalar(),
		Groups:      node.Lookup("groups").Strings(),
		Apps:        node.Lookup("apps").Strings(),
		Location:    node.Lookup("location").Scalar(),
		Manager:     node.Lookup("manager").Scalar(),
	}
}
