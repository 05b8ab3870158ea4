// Package memory provides an in-process directory.
package memory

import (
	"github.com/viant/ulma/service/dao/store"
	"github.com/viant/ulma/service/directory"
)

// New returns a directory backed by a memory store.
func New() *directory.Directory {
	return directory.New(store.NewMemoryStore[string, directory.Principal](directory.Key, directory.Filter))
}
