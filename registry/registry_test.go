package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolroute/toolroute/core"
)

// fakeSource is an in-memory RegistrySource for exercising write-through
// and sync behavior.
type fakeSource struct {
	mu      sync.Mutex
	entries map[string]*core.ExecutorDescriptor
	listErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{entries: make(map[string]*core.ExecutorDescriptor)}
}

func (f *fakeSource) ListActive(ctx context.Context) ([]*core.ExecutorDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*core.ExecutorDescriptor
	for _, d := range f.entries {
		if d.Active {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeSource) Append(ctx context.Context, d *core.ExecutorDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *d
	f.entries[d.ID] = &copied
	return nil
}

func executor(id string, cat core.Category) *core.ExecutorDescriptor {
	return &core.ExecutorDescriptor{
		ID:         id,
		Name:       id,
		Kind:       core.KindCloudAPI,
		Affinities: map[core.Category]float64{cat: 0.8},
		Active:     true,
	}
}

func TestAppendAndGet(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	require.NoError(t, r.Append(ctx, executor("calc-1", core.CategoryCalculation)))

	d, ok := r.Get("calc-1")
	require.True(t, ok)
	assert.Equal(t, "calc-1", d.ID)
	assert.True(t, r.IsActive("calc-1"))
	assert.Equal(t, 1, r.Len())

	// The returned copy must not alias catalog state.
	d.Active = false
	assert.True(t, r.IsActive("calc-1"))
}

func TestAppendRejectsMissingID(t *testing.T) {
	r := New(nil)
	err := r.Append(context.Background(), &core.ExecutorDescriptor{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))
}

func TestAppendWritesThroughToSource(t *testing.T) {
	source := newFakeSource()
	r := New(source)

	require.NoError(t, r.Append(context.Background(), executor("search-1", core.CategoryFactualSearch)))
	assert.Contains(t, source.entries, "search-1")
}

func TestSeed(t *testing.T) {
	r := New(nil)
	err := r.Seed(context.Background(), []*core.ExecutorDescriptor{
		executor("a", core.CategoryCalculation),
		executor("b", core.CategoryFactualSearch),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestMarkInactive(t *testing.T) {
	r := New(nil)
	ctx := context.Background()
	require.NoError(t, r.Append(ctx, executor("calc-1", core.CategoryCalculation)))

	require.NoError(t, r.MarkInactive(ctx, "calc-1"))
	assert.False(t, r.IsActive("calc-1"))
	assert.Equal(t, 1, r.Len(), "inactive entries stay in the catalog")
	assert.Empty(t, r.Snapshot())

	err := r.MarkInactive(ctx, "unknown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrExecutorNotFound))
}

func TestSnapshotReturnsOnlyActiveCopies(t *testing.T) {
	r := New(nil)
	ctx := context.Background()
	require.NoError(t, r.Append(ctx, executor("a", core.CategoryCalculation)))
	require.NoError(t, r.Append(ctx, executor("b", core.CategoryCalculation)))
	require.NoError(t, r.MarkInactive(ctx, "b"))

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "a", snap[0].ID)

	snap[0].Active = false
	assert.True(t, r.IsActive("a"))
}

func TestActiveByCategory(t *testing.T) {
	r := New(nil)
	ctx := context.Background()
	require.NoError(t, r.Append(ctx, executor("calc", core.CategoryCalculation)))
	require.NoError(t, r.Append(ctx, executor("search", core.CategoryFactualSearch)))

	calc := r.ActiveByCategory(core.CategoryCalculation)
	require.Len(t, calc, 1)
	assert.Equal(t, "calc", calc[0].ID)

	assert.Empty(t, r.ActiveByCategory(core.CategoryAutomation))
}

func TestSyncReplacesCatalog(t *testing.T) {
	source := newFakeSource()
	r := New(source)
	ctx := context.Background()

	require.NoError(t, r.Append(ctx, executor("old", core.CategoryCalculation)))

	// Simulate another instance replacing the source contents.
	source.mu.Lock()
	source.entries = map[string]*core.ExecutorDescriptor{
		"new": executor("new", core.CategoryFactualSearch),
	}
	source.mu.Unlock()

	require.NoError(t, r.Sync(ctx))
	assert.Equal(t, 1, r.Len())
	_, ok := r.Get("new")
	assert.True(t, ok)
	_, ok = r.Get("old")
	assert.False(t, ok)
}

func TestSyncSourceError(t *testing.T) {
	source := newFakeSource()
	source.listErr = errors.New("connection refused")
	r := New(source)

	err := r.Sync(context.Background())
	require.Error(t, err)
}

func TestSyncWithoutSourceIsNoOp(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Append(context.Background(), executor("a", core.CategoryCalculation)))
	require.NoError(t, r.Sync(context.Background()))
	assert.Equal(t, 1, r.Len())
}
