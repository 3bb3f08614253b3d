package auction

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedMutex_ExcludesSameKey(t *testing.T) {
	km := newKeyedMutex[int64]()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(7)
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max holders = %d, want 1", maxSeen)
	}
	if n := km.Len(); n != 0 {
		t.Errorf("Len() after release = %d, want 0", n)
	}
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex[string]()
	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
	if n := km.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}
