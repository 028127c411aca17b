package stencil

import (
	"errors"
	"testing"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compiled(t *testing.T, src string) *vm.Program {
	t.Helper()
	p, err := expr.Compile(src)
	require.NoError(t, err)
	return p
}

func TestProgramCacheLRU(t *testing.T) {
	c := NewProgramCache(CacheConfig{MaxSize: 2})

	c.Set("a", compiled(t, "1"))
	c.Set("b", compiled(t, "2"))
	_, ok := c.Get("a")
	require.True(t, ok)

	// b is now the least recently used entry
	c.Set("c", compiled(t, "3"))
	assert.Equal(t, 2, c.Size())
	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)

	c.Remove("a")
	assert.Equal(t, 1, c.Size())
	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestProgramCacheTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewProgramCache(CacheConfig{MaxSize: 10, TTL: time.Minute})
	c.now = func() time.Time { return now }

	c.Set("a", compiled(t, "1"))
	_, ok := c.Get("a")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestProgramCacheDisabled(t *testing.T) {
	c := NewProgramCache(CacheConfig{MaxSize: 0})
	calls := 0
	compile := func() (*vm.Program, error) {
		calls++
		return compiled(t, "1"), nil
	}

	_, err := c.GetOrCompile("a", compile)
	require.NoError(t, err)
	_, err = c.GetOrCompile("a", compile)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.Size())
}

func TestProgramCacheGetOrCompile(t *testing.T) {
	c := NewProgramCache(CacheConfig{MaxSize: 4})
	calls := 0
	compile := func() (*vm.Program, error) {
		calls++
		return compiled(t, "1 + 1"), nil
	}

	first, err := c.GetOrCompile("k", compile)
	require.NoError(t, err)
	second, err := c.GetOrCompile("k", compile)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	_, err = c.GetOrCompile("bad", func() (*vm.Program, error) { return nil, errors.New("syntax") })
	assert.Error(t, err)
	assert.Equal(t, 1, c.Size())
}
