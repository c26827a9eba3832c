package operations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optpricer/internal/operations"
)

func stepIDs(steps []operations.Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID()
	}
	return ids
}

func TestRegistry_Register(t *testing.T) {
	r := operations.NewRegistry()

	require.NoError(t, r.Register(newFakeStep("a", nil, nil, nil)))
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(newFakeStep("", nil, nil, nil)))
	assert.Error(t, r.Register(newFakeStep("a", nil, nil, nil)), "duplicate id")

	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("b"))
	assert.Equal(t, 1, r.Count())

	_, err := r.Get("b")
	assert.Error(t, err)
}

func TestRegistry_DependencyOrder(t *testing.T) {
	r := operations.NewRegistry()
	require.NoError(t, r.Register(newFakeStep("export", []string{"merge"}, nil, nil)))
	require.NoError(t, r.Register(newFakeStep("fetch", nil, nil, nil)))
	require.NoError(t, r.Register(newFakeStep("merge", []string{"fetch"}, nil, nil)))
	require.NoError(t, r.Register(newFakeStep("audit", nil, nil, nil)))

	ordered, err := r.GetDependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch", "audit", "merge", "export"}, stepIDs(ordered))
	assert.Equal(t, []string{"export", "fetch", "merge", "audit"}, r.ListIDs())
}

func TestRegistry_DependencyErrors(t *testing.T) {
	t.Run("missing dependency", func(t *testing.T) {
		r := operations.NewRegistry()
		require.NoError(t, r.Register(newFakeStep("merge", []string{"price"}, nil, nil)))
		_, err := r.GetDependencyOrder()
		assert.ErrorContains(t, err, "non-existent step price")
	})

	t.Run("cycle", func(t *testing.T) {
		r := operations.NewRegistry()
		require.NoError(t, r.Register(newFakeStep("a", []string{"b"}, nil, nil)))
		require.NoError(t, r.Register(newFakeStep("b", []string{"a"}, nil, nil)))
		_, err := r.GetDependencyOrder()
		assert.ErrorContains(t, err, "cycle")
	})
}
