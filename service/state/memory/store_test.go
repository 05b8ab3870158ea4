package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/viant/ulma/service/state"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := New()

	values, err := store.Get(ctx, "s1")
	assert.NoError(t, err)
	assert.Empty(t, values)

	assert.NoError(t, store.Put(ctx, "s1", map[string]interface{}{"A": 1, "B": true}))
	assert.NoError(t, store.Put(ctx, "s1", map[string]interface{}{"C": time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}))
	values, err = store.Get(ctx, "s1")
	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"C": "2026-01-02T03:04:05Z"}, values)

	values["C"] = "mutated"
	again, _ := store.Get(ctx, "s1")
	assert.Equal(t, "2026-01-02T03:04:05Z", again["C"])

	assert.NoError(t, store.Put(ctx, "s2", map[string]interface{}{"A": "x"}))
	assert.Equal(t, 2, store.Len())

	assert.ErrorIs(t, store.Put(ctx, "", nil), state.ErrInvalidID)
	_, err = store.Get(ctx, "")
	assert.ErrorIs(t, err, state.ErrInvalidID)
}
