package handle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGiveRunsReleaseExactlyOnceAtZero(t *testing.T) {
	var released int
	r := New(42, func(int) { released++ })
	require.Equal(t, int32(1), r.StrongCount())

	r.Give()
	require.Equal(t, int32(0), r.StrongCount())
	require.Equal(t, 1, released)
}

func TestTakeAndGiveBalance(t *testing.T) {
	var released int
	r := New("value", func(string) { released++ })

	v := r.Take()
	require.Equal(t, "value", v)
	require.Equal(t, int32(2), r.StrongCount())

	r.Give() // the extra Take()
	require.Equal(t, 0, released)
	r.Give() // the original New()
	require.Equal(t, 1, released)
}

func TestWeakUpgradeFailsAfterLastDrop(t *testing.T) {
	r := New(7, func(int) {})
	w := r.TakeWeak()

	v, ok := w.Upgrade()
	require.True(t, ok)
	require.Equal(t, 7, v)
	r.Give() // balance the Upgrade's Take

	r.Give() // drop the original strong reference to zero
	_, ok = w.Upgrade()
	require.False(t, ok)
}

func TestConcurrentTakeGiveReleasesExactlyOnce(t *testing.T) {
	var released int32
	r := New(1, func(int) { released++ })

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Take()
			r.Give()
		}()
	}
	wg.Wait()

	require.Equal(t, int32(0), released)
	r.Give()
	require.Equal(t, int32(1), released)
}

func TestPeekDoesNotAffectStrongCount(t *testing.T) {
	r := New("x", func(string) {})
	require.Equal(t, "x", r.Peek())
	require.Equal(t, int32(1), r.StrongCount())
}
