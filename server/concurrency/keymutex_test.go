package concurrency

import (
	"sync"
	"testing"
	"time"
)

func TestKeyMutexSerializesSameKey(t *testing.T) {
	km := NewKeyMutex(8)

	const workers = 32
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("same-key")
			counter++
			km.Unlock("same-key")
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("counter = %d, want %d", counter, workers)
	}
}

func TestKeyMutexBlocksHeldKey(t *testing.T) {
	km := NewKeyMutex(8)

	km.Lock("a")
	done := make(chan bool)
	go func() {
		km.Lock("a")
		km.Unlock("a")
		done <- true
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("second Lock of the held key did not block")
	default:
	}

	km.Unlock("a")
	<-done
}
