package suppliers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsync/partsync/pkg/parts"
)

type stubSupplier struct {
	id string
}

func (s *stubSupplier) ID() string   { return s.id }
func (s *stubSupplier) Name() string { return s.id }
func (s *stubSupplier) Search(context.Context, string) ([]*parts.RawCandidate, error) {
	return nil, nil
}

func TestRegistryPreservesOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubSupplier{id: "ti"}))
	require.NoError(t, r.Register(&stubSupplier{id: "future"}))
	require.NoError(t, r.Register(&stubSupplier{id: "lcsc"}))

	assert.Equal(t, []string{"ti", "future", "lcsc"}, r.IDs())
	assert.Equal(t, []string{"future", "lcsc", "ti"}, r.SortedIDs())
}

func TestRegistryReplaceKeepsPosition(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubSupplier{id: "ti"}))
	require.NoError(t, r.Register(&stubSupplier{id: "future"}))

	replacement := &stubSupplier{id: "ti"}
	require.NoError(t, r.Register(replacement))

	assert.Equal(t, []string{"ti", "future"}, r.IDs())
	got, ok := r.Get("ti")
	require.True(t, ok)
	assert.Same(t, replacement, got)
}

func TestRegistryOnly(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubSupplier{id: "ti"}))
	require.NoError(t, r.Register(&stubSupplier{id: "future"}))

	subset, err := r.Only([]string{"future"})
	require.NoError(t, err)
	require.Len(t, subset, 1)
	assert.Equal(t, "future", subset[0].ID())

	_, err = r.Only([]string{"mouser"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mouser")
}

func TestRegisterRejectsInvalid(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&stubSupplier{}))
}
