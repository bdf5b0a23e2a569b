package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/seednode/pod/server/discovery"
	"github.com/seednode/pod/server/store"
	t "github.com/seednode/pod/server/store/types"
)

func TestResolveLocalFirst(tt *testing.T) {
	resetStore(tt)

	alice := seedPerson(tt, "alice@remote.example", genKey(tt))
	disco := &testDiscovery{}
	r := newResolver(disco)

	got, err := r.resolve(context.Background(), "alice@remote.example")
	if err != nil {
		tt.Fatal("resolve failed:", err)
	}
	if got.Uid() != alice.Uid() {
		tt.Errorf("resolved uid = %s, want %s", got.Uid(), alice.Uid())
	}
	if disco.callCount() != 0 {
		tt.Errorf("discovery calls = %d, want 0", disco.callCount())
	}
}

func TestResolveUnresolvable(tt *testing.T) {
	resetStore(tt)

	r := newResolver(&testDiscovery{})
	_, err := r.resolve(context.Background(), "nobody@nowhere.example")
	if !errors.Is(err, ErrUnresolvableIdentity) {
		tt.Errorf("got %v, want ErrUnresolvableIdentity", err)
	}
}

// gatedDiscovery blocks the discovery call until released, holding the
// first flight open so concurrent resolutions pile up behind it.
type gatedDiscovery struct {
	*testDiscovery
	release chan struct{}
}

func (d *gatedDiscovery) Discover(ctx context.Context, handle string) (*discovery.Result, error) {
	<-d.release
	return d.testDiscovery.Discover(ctx, handle)
}

func TestResolveConcurrentDedup(tt *testing.T) {
	resetStore(tt)

	carolKey := genKey(tt)
	disco := &gatedDiscovery{
		testDiscovery: &testDiscovery{identities: map[string]*discovery.Result{
			"carol@third.example": {
				Handle: "carol@third.example",
				PubKey: pubKeyPEM(tt, carolKey),
			},
		}},
		release: make(chan struct{}),
	}
	r := newResolver(disco)

	const goroutines = 16
	uids := make([]t.Uid, goroutines)
	var started, wg sync.WaitGroup
	started.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			person, err := r.resolve(context.Background(), "carol@third.example")
			if err != nil {
				tt.Error("resolve failed:", err)
				return
			}
			uids[i] = person.Uid()
		}(i)
	}

	// Let every goroutine miss the store lookup and line up behind the one
	// in-flight discovery, then let it finish.
	started.Wait()
	time.Sleep(10 * time.Millisecond)
	close(disco.release)
	wg.Wait()

	// All resolutions collapsed onto the same stored record.
	stored, err := store.Persons.Get("carol@third.example")
	if err != nil {
		tt.Fatal("person not stored:", err)
	}
	for i, uid := range uids {
		if uid != stored.Uid() {
			tt.Errorf("goroutine %d resolved uid %s, want %s", i, uid, stored.Uid())
		}
	}
	if disco.callCount() != 1 {
		tt.Errorf("discovery calls = %d, want 1", disco.callCount())
	}
}
