package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henry1266/pharmacy-pos-sub005/internal/store"
)

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", `{"a":1}`))
	value, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, value)
}

func TestBlankKeyRejected(t *testing.T) {
	s := NewSeeded(map[string]string{"k": "v"})
	_, _, err := s.Get(context.Background(), " ")
	assert.ErrorIs(t, err, store.ErrInvalidKey)
	assert.ErrorIs(t, s.Set(context.Background(), "", "v"), store.ErrInvalidKey)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, "k", "v")
			_, _, _ = s.Get(ctx, "k")
		}()
	}
	wg.Wait()
	value, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}
