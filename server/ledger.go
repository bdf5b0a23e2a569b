/******************************************************************************
 *
 *  Description :
 *    Visibility ledger: per-(user, object) exposure records, the pod-wide
 *    reference count derived from them, and garbage collection of objects
 *    nobody references anymore.
 *
 *****************************************************************************/

package main

import (
	"github.com/seednode/pod/server/concurrency"
	"github.com/seednode/pod/server/logs"
	"github.com/seednode/pod/server/store"
	t "github.com/seednode/pod/server/store/types"
)

// ledger serializes visibility changes per (user, guid) pair on top of the
// adapter's transactional primitives. The adapter keeps the reference count
// equal to the number of visibility records; the ledger keeps a grant from
// racing a revoke for the same pair.
type ledger struct {
	pairLock *concurrency.KeyMutex
}

func newLedger() *ledger {
	return &ledger{pairLock: concurrency.NewKeyMutex(128)}
}

func pairKey(uid t.Uid, guid string) string {
	return uid.String() + "|" + guid
}

// grant exposes the object to the user. Idempotent: a pair that is already
// visible stays a single record. Reports whether a new record was created.
func (l *ledger) grant(uid t.Uid, guid string) (bool, error) {
	key := pairKey(uid, guid)
	l.pairLock.Lock(key)
	defer l.pairLock.Unlock(key)

	return store.Visibility.Add(uid, guid)
}

// revoke withdraws the object from the user. When the removed record was
// the object's last one pod-wide, the adapter deletes the object and its
// orphaned comments in the same transaction. Reports whether the object
// was garbage-collected.
func (l *ledger) revoke(uid t.Uid, guid string) (bool, error) {
	key := pairKey(uid, guid)
	l.pairLock.Lock(key)
	defer l.pairLock.Unlock(key)

	return store.Visibility.Remove(uid, guid)
}

// sweepOnDisconnect revokes the user's visibility of everything authored by
// the person. Invoked when either side severs the contact relation. Returns
// the number of revoked records.
func (l *ledger) sweepOnDisconnect(uid t.Uid, person t.Uid) (int, error) {
	guids, err := store.Visibility.AuthoredBy(person, uid)
	if err != nil {
		return 0, err
	}

	revoked := 0
	for _, guid := range guids {
		gc, err := l.revoke(uid, guid)
		if err != nil {
			return revoked, err
		}
		revoked++
		if gc {
			logs.Info.Println("ledger: collected", guid, "after disconnect sweep")
		}
	}
	return revoked, nil
}
