package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRejectsStaleHandles(t *testing.T) {
	p := NewPool()
	a := p.Create()
	require.False(t, a.IsZero())
	assert.True(t, p.Alive(a))

	assert.True(t, p.Destroy(a))
	assert.False(t, p.Alive(a))
	assert.False(t, p.Destroy(a), "second destroy is a no-op")

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index(), "slot is reused")
	assert.NotEqual(t, a, b)
	assert.False(t, p.Alive(a))
	assert.True(t, p.Alive(b))
	assert.Equal(t, 1, p.Live())
}

func TestZeroHandleNeverAlive(t *testing.T) {
	p := NewPool()
	assert.False(t, p.Alive(0))
}

func TestWorldDestroyPurgesStores(t *testing.T) {
	w := NewWorld()
	names := NewStore[string]()
	sizes := NewStore[int]()
	w.Register(names)
	w.Register(sizes)

	h := w.Create()
	n, s := "box", 3
	names.Set(h, &n)
	sizes.Set(h, &s)

	count := 0
	Each2(names, sizes, func(Handle, *string, *int) { count++ })
	assert.Equal(t, 1, count)

	assert.True(t, sizes.Update(h, func(v *int) { *v = 4 }))
	got, _ := sizes.Get(h)
	assert.Equal(t, 4, *got)

	require.True(t, w.Destroy(h))
	assert.False(t, names.Has(h))
	assert.False(t, sizes.Has(h))
	assert.Equal(t, 0, w.Live())
}
