package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestConcurrentMutationSerialization checks that concurrent
// read-modify-write sequences under the same key never race past each
// other: the final value matches sequential execution.
func TestConcurrentMutationSerialization(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(1000, 100000).Draw(t, "initial")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		deltas := make([]int64, numOps)
		expected := initial
		for i := 0; i < numOps; i++ {
			deltas[i] = rapid.Int64Range(-500, 500).Draw(t, "delta")
			expected += deltas[i]
		}

		key := rapid.Int64Range(1, 1000000).Draw(t, "key")

		kl := NewKeyLock()
		value := initial

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, d := range deltas {
			go func(delta int64) {
				defer wg.Done()
				kl.Lock(key)
				defer kl.Unlock(key)
				value += delta
			}(d)
		}
		wg.Wait()

		if value != expected {
			t.Fatalf("value mismatch under lock: expected %d, got %d", expected, value)
		}
	})
}

// Different keys must not contend: a held lock on one key does not
// block another.
func TestIndependentKeys(t *testing.T) {
	kl := NewKeyLock()

	kl.Lock(1)
	defer kl.Unlock(1)

	assert.True(t, kl.TryLock(2), "lock on key 1 must not block key 2")
	kl.Unlock(2)
}

func TestTryLockHeld(t *testing.T) {
	kl := NewKeyLock()

	kl.Lock(42)
	assert.False(t, kl.TryLock(42))
	kl.Unlock(42)
	assert.True(t, kl.TryLock(42))
	kl.Unlock(42)
}

func TestWithLockReleasesOnError(t *testing.T) {
	kl := NewKeyLock()

	errRun := assert.AnError
	err := kl.WithLock(7, func() error { return errRun })
	assert.Equal(t, errRun, err)

	// The lock must be free again.
	assert.True(t, kl.TryLock(7))
	kl.Unlock(7)
}

func TestLockWithTimeoutExpires(t *testing.T) {
	kl := NewKeyLock()

	kl.Lock(9)
	defer kl.Unlock(9)

	done := make(chan bool, 1)
	go func() {
		done <- kl.LockWithTimeout(t.Context(), 9, 20*time.Millisecond)
	}()

	select {
	case ok := <-done:
		assert.False(t, ok, "timed-out acquisition must report failure")
	case <-time.After(time.Second):
		t.Fatal("LockWithTimeout did not return")
	}
}
