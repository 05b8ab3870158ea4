package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/viant/ulma/service/dao"
)

type record struct {
	ID    string `json:"id"`
	Group string `json:"group"`
}

func recordKey(r *record) string { return r.ID }

func groupFilter(r *record, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter.Name == "Group" && parameter.Value != r.Group {
			return false
		}
	}
	return true
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFSStore[record](ctx, afs.New(), t.TempDir(), recordKey, groupFilter)
	require.NoError(t, err)
	var testCases = []struct {
		description string
		store       dao.Service[string, record]
	}{
		{description: "memory", store: NewMemoryStore[string, record](recordKey, groupFilter)},
		{description: "fs", store: fsStore},
	}
	for _, testCase := range testCases {
		store := testCase.store
		_, err := store.Load(ctx, "a")
		assert.ErrorIs(t, err, dao.ErrNotFound, testCase.description)
		assert.ErrorIs(t, store.Save(ctx, nil), dao.ErrNilEntity, testCase.description)
		assert.ErrorIs(t, store.Save(ctx, &record{}), dao.ErrInvalidID, testCase.description)

		require.NoError(t, store.Save(ctx, &record{ID: "a", Group: "level1"}), testCase.description)
		require.NoError(t, store.Save(ctx, &record{ID: "b", Group: "admins"}), testCase.description)

		loaded, err := store.Load(ctx, "a")
		require.NoError(t, err, testCase.description)
		loaded.Group = "mutated"
		again, err := store.Load(ctx, "a")
		require.NoError(t, err, testCase.description)
		assert.Equal(t, "level1", again.Group, testCase.description)

		all, err := store.List(ctx)
		require.NoError(t, err, testCase.description)
		assert.Len(t, all, 2, testCase.description)
		admins, err := store.List(ctx, dao.NewParameter("Group", "admins"))
		require.NoError(t, err, testCase.description)
		require.Len(t, admins, 1, testCase.description)
		assert.Equal(t, "b", admins[0].ID, testCase.description)

		require.NoError(t, store.Delete(ctx, "a"), testCase.description)
		assert.ErrorIs(t, store.Delete(ctx, "a"), dao.ErrNotFound, testCase.description)
	}
}

func TestFSStore_SkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFSStore[record](ctx, afs.New(), dir, recordKey, nil)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, &record{ID: "ok"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
