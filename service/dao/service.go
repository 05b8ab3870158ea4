// Package dao defines the generic persistence contract used for directory
// principals and other keyed records.
package dao

import (
	"context"
)

// Service stores entities of type T keyed by K.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	// Load returns ErrNotFound when no entity is stored under id.
	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
