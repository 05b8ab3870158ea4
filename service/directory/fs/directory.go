// Package fs provides a directory persisted as one JSON file per principal.
package fs

import (
	"context"

	"github.com/viant/afs"

	"github.com/viant/ulma/service/dao/store"
	"github.com/viant/ulma/service/directory"
)

// New returns a directory rooted at baseURL.
func New(ctx context.Context, fs afs.Service, baseURL string) (*directory.Directory, error) {
	principals, err := store.NewFSStore[directory.Principal](ctx, fs, baseURL, directory.Key, directory.Filter)
	if err != nil {
		return nil, err
	}
	return directory.New(principals), nil
}
