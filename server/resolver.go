/******************************************************************************
 *
 *  Description :
 *    Identity resolution: handle -> person. Local storage first, then the
 *    external discovery collaborator. Memoized and safe under concurrent
 *    invocation.
 *
 *****************************************************************************/

package main

import (
	"context"
	"errors"
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/seednode/pod/server/discovery"
	"github.com/seednode/pod/server/logs"
	"github.com/seednode/pod/server/store"
	t "github.com/seednode/pod/server/store/types"
)

const (
	// How long a resolved person stays in the memoization cache.
	resolveCacheTTL = 10 * time.Minute
	// How often expired cache entries are evicted.
	resolveCacheCleanup = time.Hour
	// Remote profiles older than this are re-discovered in the background.
	profileMaxAge = 24 * time.Hour
)

// resolver maps handles to persons. Storage is authoritative; the cache only
// saves repeated lookups, and singleflight collapses concurrent discovery
// calls for the same unknown handle into one.
type resolver struct {
	svc   discovery.Service
	group singleflight.Group
	cache *cache.Cache
}

func newResolver(svc discovery.Service) *resolver {
	return &resolver{
		svc:   svc,
		cache: cache.New(resolveCacheTTL, resolveCacheCleanup),
	}
}

// resolve returns the person behind the handle. A handle found in local
// storage is returned immediately with no external call. Unknown handles go
// through discovery; the discovered person is stored with insert-if-absent
// semantics, so two concurrent resolutions of the same handle end up with
// the same single record.
func (r *resolver) resolve(ctx context.Context, handle string) (*t.Person, error) {
	if cached, ok := r.cache.Get(handle); ok {
		return cached.(*t.Person), nil
	}

	person, err := store.Persons.Get(handle)
	if err == nil {
		r.cache.SetDefault(handle, person)
		r.maybeRefreshProfile(person)
		return person, nil
	}
	if !errors.Is(err, t.ErrNotFound) {
		return nil, err
	}

	v, err, _ := r.group.Do(handle, func() (interface{}, error) {
		return r.discover(ctx, handle)
	})
	if err != nil {
		return nil, err
	}
	person = v.(*t.Person)
	r.cache.SetDefault(handle, person)
	return person, nil
}

func (r *resolver) discover(ctx context.Context, handle string) (*t.Person, error) {
	res, err := r.svc.Discover(ctx, handle)
	if err != nil {
		logs.Info.Println("resolver: discovery of", handle, "failed:", err)
		return nil, ErrUnresolvableIdentity
	}

	person := &t.Person{
		Handle:  res.Handle,
		PubKey:  res.PubKey,
		Profile: res.Profile,
	}
	// The stored record wins over ours if another resolution got there first.
	person, _, err = store.Persons.Create(person)
	if err != nil {
		return nil, err
	}
	return person, nil
}

// maybeRefreshProfile schedules a background re-discovery for remote persons
// whose cached profile has gone stale. The identity itself stays immutable;
// only the profile is replaced.
func (r *resolver) maybeRefreshProfile(person *t.Person) {
	if person.Local || time.Since(person.UpdatedAt) < profileMaxAge {
		return
	}

	handle := person.Handle
	uid := person.Uid()
	globals.workers.Schedule(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		res, err := r.svc.Discover(ctx, handle)
		if err != nil {
			// Stale profile is fine, try again next time.
			return
		}
		if err = store.Persons.UpdateProfile(uid, res.Profile); err != nil {
			logs.Warning.Println("resolver: profile refresh of", handle, "failed:", err)
			return
		}
		r.cache.Delete(handle)
	})
}
