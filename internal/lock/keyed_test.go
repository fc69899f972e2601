package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSerializesSameKey(t *testing.T) {
	k := NewKeyed()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("acc-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestLockPairOppositeDirectionsNoDeadlock(t *testing.T) {
	k := NewKeyed()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := k.LockPair("acc-1", "acc-2")
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := k.LockPair("acc-2", "acc-1")
			unlock()
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "deadlock between opposite-direction pair locks")
	}
}

func TestLockDisjointKeysDoNotBlock(t *testing.T) {
	k := NewKeyed()

	unlockA := k.Lock("acc-1")
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		unlockB := k.Lock("acc-2")
		unlockB()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		require.FailNow(t, "lock on a different key blocked")
	}
}
