package interop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDedupesReferences(t *testing.T) {
	r := NewRegistry()
	type box struct{ n int }
	b := &box{}
	m := map[string]int{}
	ch := make(chan int)

	id1, fresh := r.Add(b)
	require.True(t, fresh)
	id2, fresh := r.Add(b)
	assert.False(t, fresh)
	assert.Equal(t, id1, id2)

	mid, _ := r.Add(m)
	again, fresh := r.Add(m)
	assert.False(t, fresh)
	assert.Equal(t, mid, again)

	cid, _ := r.Add(ch)
	assert.NotEqual(t, mid, cid)

	other, fresh := r.Add(&box{})
	assert.True(t, fresh)
	assert.NotEqual(t, id1, other)
	assert.Equal(t, 4, r.Len())
}

func TestRegistryValuesAndFuncsAreNotDeduped(t *testing.T) {
	r := NewRegistry()
	f := func() {}

	a, _ := r.Add(f)
	b, _ := r.Add(f)
	assert.NotEqual(t, a, b)

	type pt struct{ X int }
	c, _ := r.Add(pt{1})
	d, _ := r.Add(pt{1})
	assert.NotEqual(t, c, d)
}

func TestRegistryGetAndReset(t *testing.T) {
	r := NewRegistry()
	v := &struct{}{}
	id, _ := r.Add(v)

	got, ok := r.Get(id)
	require.True(t, ok)
	assert.Same(t, v, got)

	_, ok = r.Get(id + 1)
	assert.False(t, ok)

	r.Reset()
	assert.Equal(t, 0, r.Len())
	_, ok = r.Get(id)
	assert.False(t, ok)

	again, fresh := r.Add(v)
	assert.True(t, fresh)
	assert.NotEqual(t, id, again)
}
