/******************************************************************************
 *
 *  Description :
 *
 *  End-to-end tests of the receiving pipeline over the in-memory adapter.
 *
 *****************************************************************************/

package main

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/seednode/pod/server/discovery"
	"github.com/seednode/pod/server/envelope"
	"github.com/seednode/pod/server/push"
	"github.com/seednode/pod/server/store"
	t "github.com/seednode/pod/server/store/types"
)

func TestReceiveStatus(tt *testing.T) {
	resetStore(tt)
	ctx := context.Background()

	aliceKey := genKey(tt)
	alice := seedPerson(tt, "alice@remote.example", aliceKey)
	bob := seedUser(tt, "bob@pod.example")
	connect(tt, bob, alice, "friends")

	rcv, _ := newTestReceiver(nil)
	pl := makeObject(tt, t.KindStatus, "g1", alice.Handle, "hello world", "", aliceKey)
	raw := wrapEnvelope(tt, pl, alice.Handle, aliceKey)

	if err := rcv.Receive(ctx, raw, bob); err != nil {
		tt.Fatal("receive failed:", err)
	}

	obj, err := store.Objects.Get("g1")
	if err != nil {
		tt.Fatal("object not stored:", err)
	}
	if obj.Author != alice.Uid() || obj.Content != "hello world" || obj.Mutable {
		tt.Errorf("stored object mismatch: %+v", obj)
	}
	mustVisibilityCount(tt, "g1", 1)

	// Receiving never creates aspects.
	if aspects, err := store.Aspects.ForUser(bob.Uid()); err != nil || len(aspects) != 1 {
		tt.Errorf("aspect count = %d (err %v), want 1", len(aspects), err)
	}

	receipts := sink.drain()
	if len(receipts) != 1 {
		tt.Fatalf("got %d notifications, want 1", len(receipts))
	}
	if rcpt := receipts[0]; rcpt.To != bob.Uid() || rcpt.Payload.What != push.ActPost ||
		rcpt.Payload.Guid != "g1" || rcpt.Payload.From != alice.Handle {
		tt.Errorf("notification mismatch: %+v", rcpt)
	}
}

func TestReceiveRejects(tt *testing.T) {
	resetStore(tt)
	ctx := context.Background()

	aliceKey := genKey(tt)
	alice := seedPerson(tt, "alice@remote.example", aliceKey)
	bob := seedUser(tt, "bob@pod.example")
	connect(tt, bob, alice, "friends")

	rcv, _ := newTestReceiver(nil)

	tt.Run("garbage", func(tt *testing.T) {
		err := rcv.Receive(ctx, []byte("not an envelope"), bob)
		if !errors.Is(err, ErrMalformedPayload) {
			tt.Errorf("got %v, want ErrMalformedPayload", err)
		}
	})

	tt.Run("unknown sender", func(tt *testing.T) {
		mallory := genKey(tt)
		pl := makeObject(tt, t.KindStatus, "g2", "mallory@nowhere.example", "hi", "", mallory)
		raw := wrapEnvelope(tt, pl, "mallory@nowhere.example", mallory)
		if err := rcv.Receive(ctx, raw, bob); !errors.Is(err, ErrUnknownSender) {
			tt.Errorf("got %v, want ErrUnknownSender", err)
		}
	})

	tt.Run("bad envelope signature", func(tt *testing.T) {
		wrongKey := genKey(tt)
		pl := makeObject(tt, t.KindStatus, "g3", alice.Handle, "hi", "", aliceKey)
		raw := wrapEnvelope(tt, pl, alice.Handle, wrongKey)
		if err := rcv.Receive(ctx, raw, bob); !errors.Is(err, ErrInvalidSignature) {
			tt.Errorf("got %v, want ErrInvalidSignature", err)
		}
	})

	tt.Run("bad author signature", func(tt *testing.T) {
		wrongKey := genKey(tt)
		pl := makeObject(tt, t.KindStatus, "g4", alice.Handle, "hi", "", wrongKey)
		raw := wrapEnvelope(tt, pl, alice.Handle, aliceKey)
		if err := rcv.Receive(ctx, raw, bob); !errors.Is(err, ErrInvalidSignature) {
			tt.Errorf("got %v, want ErrInvalidSignature", err)
		}
	})

	// Nothing should have been stored or exposed by any of the above.
	if _, err := store.Objects.Get("g3"); !errors.Is(err, t.ErrNotFound) {
		tt.Error("rejected object was stored")
	}
	if receipts := sink.drain(); len(receipts) != 0 {
		tt.Errorf("got %d notifications, want 0", len(receipts))
	}
}

func TestDiscoveryOnFirstContact(tt *testing.T) {
	resetStore(tt)
	ctx := context.Background()

	carolKey := genKey(tt)
	bob := seedUser(tt, "bob@pod.example")

	rcv, disco := newTestReceiver(map[string]*discovery.Result{
		"carol@third.example": {
			Handle:  "carol@third.example",
			PubKey:  pubKeyPEM(tt, carolKey),
			Profile: &t.Profile{Name: "Carol"},
		},
	})

	pl := makeObject(tt, t.KindStatus, "g1", "carol@third.example", "first contact", "", carolKey)
	raw := wrapEnvelope(tt, pl, "carol@third.example", carolKey)

	if err := rcv.Receive(ctx, raw, bob); err != nil {
		tt.Fatal("receive failed:", err)
	}
	if disco.callCount() != 1 {
		tt.Errorf("discovery calls = %d, want 1", disco.callCount())
	}

	carol, err := store.Persons.Get("carol@third.example")
	if err != nil {
		tt.Fatal("discovered person not stored:", err)
	}
	if carol.Profile == nil || carol.Profile.Name != "Carol" {
		tt.Errorf("profile not stored: %+v", carol.Profile)
	}

	// Carol is not a contact of bob: stored, not exposed, no notification.
	mustVisibilityCount(tt, "g1", 0)
	if receipts := sink.drain(); len(receipts) != 0 {
		tt.Errorf("got %d notifications, want 0", len(receipts))
	}

	// Second receive resolves from cache, no new discovery call.
	if err := rcv.Receive(ctx, raw, bob); err != nil {
		tt.Fatal("second receive failed:", err)
	}
	if disco.callCount() != 1 {
		tt.Errorf("discovery calls after second receive = %d, want 1", disco.callCount())
	}
}

func TestMultiAspectSingleNotification(tt *testing.T) {
	resetStore(tt)
	ctx := context.Background()

	aliceKey := genKey(tt)
	alice := seedPerson(tt, "alice@remote.example", aliceKey)
	bob := seedUser(tt, "bob@pod.example")

	// Alice is listed in two of bob's aspects.
	friends, err := store.Aspects.Create(&t.Aspect{UserId: bob.Uid(), Name: "friends"})
	if err != nil {
		tt.Fatal(err)
	}
	family, err := store.Aspects.Create(&t.Aspect{UserId: bob.Uid(), Name: "family"})
	if err != nil {
		tt.Fatal(err)
	}
	if _, err = store.Contacts.Create(&t.Contact{
		UserId:   bob.Uid(),
		PersonId: alice.Uid(),
		Aspects:  []t.Uid{friends.Uid(), family.Uid()},
	}); err != nil {
		tt.Fatal(err)
	}

	rcv, _ := newTestReceiver(nil)
	pl := makeObject(tt, t.KindStatus, "g1", alice.Handle, "hello both", "", aliceKey)
	if err := rcv.ReceivePayload(ctx, pl, alice, bob); err != nil {
		tt.Fatal("receive failed:", err)
	}

	// Two matched aspects, one visibility record, one notification.
	mustVisibilityCount(tt, "g1", 1)
	if receipts := sink.drain(); len(receipts) != 1 {
		tt.Errorf("got %d notifications, want 1", len(receipts))
	}
}

func TestImmutableStatusRefresh(tt *testing.T) {
	resetStore(tt)
	ctx := context.Background()

	aliceKey := genKey(tt)
	alice := seedPerson(tt, "alice@remote.example", aliceKey)
	bob := seedUser(tt, "bob@pod.example")
	connect(tt, bob, alice, "friends")

	rcv, _ := newTestReceiver(nil)

	pl := makeObject(tt, t.KindStatus, "g1", alice.Handle, "original", "", aliceKey)
	if err := rcv.ReceivePayload(ctx, pl, alice, bob); err != nil {
		tt.Fatal("first receive failed:", err)
	}

	// Re-receive with different content: silently discarded.
	pl2 := makeObject(tt, t.KindStatus, "g1", alice.Handle, "edited", "", aliceKey)
	if err := rcv.ReceivePayload(ctx, pl2, alice, bob); err != nil {
		tt.Fatal("refresh failed:", err)
	}

	obj, err := store.Objects.Get("g1")
	if err != nil {
		tt.Fatal(err)
	}
	if obj.Content != "original" {
		tt.Errorf("immutable object was overwritten: %q", obj.Content)
	}
	mustVisibilityCount(tt, "g1", 1)

	// One notification for the pair total, none for the refresh.
	if receipts := sink.drain(); len(receipts) != 1 {
		tt.Errorf("got %d notifications, want 1", len(receipts))
	}
}

func TestMutablePhotoUpdate(tt *testing.T) {
	resetStore(tt)
	ctx := context.Background()

	aliceKey := genKey(tt)
	alice := seedPerson(tt, "alice@remote.example", aliceKey)
	bob := seedUser(tt, "bob@pod.example")
	connect(tt, bob, alice, "friends")

	rcv, _ := newTestReceiver(nil)

	pl := makeObject(tt, t.KindPhoto, "p1", alice.Handle, "old caption", "", aliceKey)
	if err := rcv.ReceivePayload(ctx, pl, alice, bob); err != nil {
		tt.Fatal("first receive failed:", err)
	}

	pl2 := makeObject(tt, t.KindPhoto, "p1", alice.Handle, "new caption", "", aliceKey)
	if err := rcv.ReceivePayload(ctx, pl2, alice, bob); err != nil {
		tt.Fatal("update failed:", err)
	}

	obj, err := store.Objects.Get("p1")
	if err != nil {
		tt.Fatal(err)
	}
	if obj.Content != "new caption" {
		tt.Errorf("mutable object not updated: %q", obj.Content)
	}
	if !obj.Mutable {
		tt.Error("photo not marked mutable")
	}
	mustVisibilityCount(tt, "p1", 1)
}

func TestAuthorMismatch(tt *testing.T) {
	resetStore(tt)
	ctx := context.Background()

	aliceKey := genKey(tt)
	alice := seedPerson(tt, "alice@remote.example", aliceKey)
	evilKey := genKey(tt)
	evil := seedPerson(tt, "mallory@evil.example", evilKey)
	bob := seedUser(tt, "bob@pod.example")
	connect(tt, bob, alice, "friends")
	connect(tt, bob, evil, "acquaintances")

	rcv, _ := newTestReceiver(nil)

	pl := makeObject(tt, t.KindPhoto, "p1", alice.Handle, "mine", "", aliceKey)
	if err := rcv.ReceivePayload(ctx, pl, alice, bob); err != nil {
		tt.Fatal("first receive failed:", err)
	}

	// Mallory claims alice's guid with a validly signed payload of their own.
	forged := makeObject(tt, t.KindPhoto, "p1", evil.Handle, "now mine", "", evilKey)
	if err := rcv.ReceivePayload(ctx, forged, evil, bob); !errors.Is(err, ErrAuthorMismatch) {
		tt.Fatalf("got %v, want ErrAuthorMismatch", err)
	}

	obj, err := store.Objects.Get("p1")
	if err != nil {
		tt.Fatal(err)
	}
	if obj.Author != alice.Uid() || obj.Content != "mine" {
		tt.Errorf("stored object was touched: %+v", obj)
	}
}

func TestComments(tt *testing.T) {
	resetStore(tt)
	ctx := context.Background()

	aliceKey := genKey(tt)
	alice := seedPerson(tt, "alice@remote.example", aliceKey)
	carolKey := genKey(tt)
	carol := seedPerson(tt, "carol@third.example", carolKey)
	bob := seedUser(tt, "bob@pod.example")
	connect(tt, bob, alice, "friends")

	rcv, _ := newTestReceiver(nil)

	post := makeObject(tt, t.KindStatus, "g1", alice.Handle, "a post", "", aliceKey)
	if err := rcv.ReceivePayload(ctx, post, alice, bob); err != nil {
		tt.Fatal("post receive failed:", err)
	}
	sink.drain()

	tt.Run("orphan", func(tt *testing.T) {
		orphan := makeObject(tt, t.KindComment, "c0", alice.Handle, "where", "nope", aliceKey)
		if err := rcv.ReceivePayload(ctx, orphan, alice, bob); !errors.Is(err, ErrOrphanObject) {
			tt.Errorf("got %v, want ErrOrphanObject", err)
		}
	})

	tt.Run("direct by author", func(tt *testing.T) {
		cm := makeObject(tt, t.KindComment, "c1", alice.Handle, "own comment", "g1", aliceKey)
		if err := rcv.ReceivePayload(ctx, cm, alice, bob); err != nil {
			tt.Fatal("comment receive failed:", err)
		}
		receipts := sink.drain()
		if len(receipts) != 1 || receipts[0].Payload.What != push.ActComment {
			tt.Errorf("expected one comment notification, got %+v", receipts)
		}
	})

	tt.Run("relayed without countersignature", func(tt *testing.T) {
		cm := makeObject(tt, t.KindComment, "c2", carol.Handle, "drive-by", "g1", carolKey)
		if err := rcv.ReceivePayload(ctx, cm, alice, bob); !errors.Is(err, ErrInvalidSignature) {
			tt.Errorf("got %v, want ErrInvalidSignature", err)
		}
	})

	tt.Run("relayed by non parent author", func(tt *testing.T) {
		// Alice's comment relayed by carol, who does not own the parent.
		cm := makeObject(tt, t.KindComment, "c3", alice.Handle, "drive-by", "g1", aliceKey)
		cm.ParentAuthorSig = sign(tt, carolKey, cm.SignableText())
		if err := rcv.ReceivePayload(ctx, cm, carol, bob); !errors.Is(err, ErrInvalidSignature) {
			tt.Errorf("got %v, want ErrInvalidSignature", err)
		}
	})

	tt.Run("relayed with countersignature", func(tt *testing.T) {
		cm := makeObject(tt, t.KindComment, "c4", carol.Handle, "countersigned", "g1", carolKey)
		cm.ParentAuthorSig = sign(tt, aliceKey, cm.SignableText())
		if err := rcv.ReceivePayload(ctx, cm, alice, bob); err != nil {
			tt.Fatal("relayed comment receive failed:", err)
		}
		obj, err := store.Objects.Get("c4")
		if err != nil {
			tt.Fatal(err)
		}
		if obj.Author != carol.Uid() || obj.ParentGuid != "g1" {
			tt.Errorf("stored comment mismatch: %+v", obj)
		}
		// Carol is a stranger to bob: the comment is stored, not exposed.
		mustVisibilityCount(tt, "c4", 0)
		if receipts := sink.drain(); len(receipts) != 0 {
			tt.Errorf("got %d notifications, want 0", len(receipts))
		}
	})
}

func TestFanOutRefCount(tt *testing.T) {
	resetStore(tt)
	ctx := context.Background()

	aliceKey := genKey(tt)
	alice := seedPerson(tt, "alice@remote.example", aliceKey)
	bob := seedUser(tt, "bob@pod.example")
	dora := seedUser(tt, "dora@pod.example")
	connect(tt, bob, alice, "friends")
	connect(tt, dora, alice, "family")

	rcv, _ := newTestReceiver(nil)

	pl := makeObject(tt, t.KindStatus, "g1", alice.Handle, "shared once", "", aliceKey)
	if err := rcv.ReceivePayload(ctx, pl, alice, bob); err != nil {
		tt.Fatal("receive for bob failed:", err)
	}
	if err := rcv.ReceivePayload(ctx, pl, alice, dora); err != nil {
		tt.Fatal("receive for dora failed:", err)
	}

	mustVisibilityCount(tt, "g1", 2)

	// One notification per recipient, not per delivery attempt.
	receipts := sink.drain()
	if len(receipts) != 2 {
		tt.Fatalf("got %d notifications, want 2", len(receipts))
	}
	seen := map[t.Uid]bool{}
	for _, rcpt := range receipts {
		seen[rcpt.To] = true
	}
	if !seen[bob.Uid()] || !seen[dora.Uid()] {
		tt.Errorf("notification recipients mismatch: %+v", receipts)
	}
}

func TestRetraction(tt *testing.T) {
	resetStore(tt)
	ctx := context.Background()

	aliceKey := genKey(tt)
	alice := seedPerson(tt, "alice@remote.example", aliceKey)
	evilKey := genKey(tt)
	evil := seedPerson(tt, "mallory@evil.example", evilKey)
	bob := seedUser(tt, "bob@pod.example")
	connect(tt, bob, alice, "friends")

	rcv, _ := newTestReceiver(nil)

	pl := makeObject(tt, t.KindStatus, "g1", alice.Handle, "short-lived", "", aliceKey)
	if err := rcv.ReceivePayload(ctx, pl, alice, bob); err != nil {
		tt.Fatal("receive failed:", err)
	}

	tt.Run("forged author", func(tt *testing.T) {
		forged := makeRetraction(tt, "g1", alice.Handle, evilKey)
		if err := rcv.ReceivePayload(ctx, forged, evil, bob); !errors.Is(err, ErrAuthorMismatch) {
			tt.Errorf("got %v, want ErrAuthorMismatch", err)
		}
		mustVisibilityCount(tt, "g1", 1)
	})

	tt.Run("wrong object author", func(tt *testing.T) {
		own := makeRetraction(tt, "g1", evil.Handle, evilKey)
		if err := rcv.ReceivePayload(ctx, own, evil, bob); !errors.Is(err, ErrAuthorMismatch) {
			tt.Errorf("got %v, want ErrAuthorMismatch", err)
		}
		mustVisibilityCount(tt, "g1", 1)
	})

	tt.Run("by author", func(tt *testing.T) {
		ret := makeRetraction(tt, "g1", alice.Handle, aliceKey)
		if err := rcv.ReceivePayload(ctx, ret, alice, bob); err != nil {
			tt.Fatal("retraction failed:", err)
		}
		// Last record pod-wide: the object is collected.
		if _, err := store.Objects.Get("g1"); !errors.Is(err, t.ErrNotFound) {
			tt.Error("retracted object still stored")
		}
	})

	tt.Run("unknown guid", func(tt *testing.T) {
		ret := makeRetraction(tt, "never-existed", alice.Handle, aliceKey)
		if err := rcv.ReceivePayload(ctx, ret, alice, bob); err != nil {
			tt.Errorf("retraction of unknown object: got %v, want nil", err)
		}
	})
}

func TestConcurrentRevokeLastReferences(tt *testing.T) {
	resetStore(tt)
	ctx := context.Background()

	aliceKey := genKey(tt)
	alice := seedPerson(tt, "alice@remote.example", aliceKey)
	bob := seedUser(tt, "bob@pod.example")
	dora := seedUser(tt, "dora@pod.example")
	connect(tt, bob, alice, "friends")
	connect(tt, dora, alice, "family")

	rcv, _ := newTestReceiver(nil)

	pl := makeObject(tt, t.KindStatus, "g1", alice.Handle, "last two refs", "", aliceKey)
	if err := rcv.ReceivePayload(ctx, pl, alice, bob); err != nil {
		tt.Fatal(err)
	}
	if err := rcv.ReceivePayload(ctx, pl, alice, dora); err != nil {
		tt.Fatal(err)
	}
	mustVisibilityCount(tt, "g1", 2)

	// Revoke the last two references simultaneously. Exactly one of the two
	// calls must observe the count hitting zero and perform the deletion.
	users := []t.Uid{bob.Uid(), dora.Uid()}
	collected := make([]bool, len(users))
	var wg sync.WaitGroup
	for i, uid := range users {
		wg.Add(1)
		go func(i int, uid t.Uid) {
			defer wg.Done()
			gc, err := rcv.ledger.revoke(uid, "g1")
			if err != nil {
				tt.Error("revoke failed:", err)
				return
			}
			collected[i] = gc
		}(i, uid)
	}
	wg.Wait()

	gcs := 0
	for _, gc := range collected {
		if gc {
			gcs++
		}
	}
	if gcs != 1 {
		tt.Errorf("garbage collections = %d, want exactly 1", gcs)
	}
	if _, err := store.Objects.Get("g1"); !errors.Is(err, t.ErrNotFound) {
		tt.Error("unreferenced object still stored")
	}
	mustVisibilityCount(tt, "g1", 0)
}

func TestConcurrentReceiveSameGuid(tt *testing.T) {
	resetStore(tt)
	ctx := context.Background()

	aliceKey := genKey(tt)
	alice := seedPerson(tt, "alice@remote.example", aliceKey)
	bob := seedUser(tt, "bob@pod.example")
	connect(tt, bob, alice, "friends")

	rcv, _ := newTestReceiver(nil)
	pl := makeObject(tt, t.KindStatus, "g1", alice.Handle, "delivered twice", "", aliceKey)

	// Duplicate deliveries of the same object racing each other: one object,
	// one visibility record, one notification.
	const deliveries = 8
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rcv.ReceivePayload(ctx, pl, alice, bob); err != nil {
				tt.Error("receive failed:", err)
			}
		}()
	}
	wg.Wait()

	obj, err := store.Objects.Get("g1")
	if err != nil {
		tt.Fatal("object not stored:", err)
	}
	if obj.Content != "delivered twice" {
		tt.Errorf("stored content = %q", obj.Content)
	}
	mustVisibilityCount(tt, "g1", 1)
	if receipts := sink.drain(); len(receipts) != 1 {
		tt.Errorf("got %d notifications, want 1", len(receipts))
	}
}

func TestDisconnectSweep(tt *testing.T) {
	resetStore(tt)
	ctx := context.Background()

	aliceKey := genKey(tt)
	alice := seedPerson(tt, "alice@remote.example", aliceKey)
	carolKey := genKey(tt)
	carol := seedPerson(tt, "carol@third.example", carolKey)
	bob := seedUser(tt, "bob@pod.example")
	dora := seedUser(tt, "dora@pod.example")
	connect(tt, bob, alice, "friends")
	connect(tt, dora, alice, "family")
	connect(tt, bob, carol, "acquaintances")

	rcv, _ := newTestReceiver(nil)

	// Alice's post is visible to both users; her photo only to bob. Carol
	// comments on the post.
	post := makeObject(tt, t.KindStatus, "g1", alice.Handle, "a post", "", aliceKey)
	if err := rcv.ReceivePayload(ctx, post, alice, bob); err != nil {
		tt.Fatal(err)
	}
	if err := rcv.ReceivePayload(ctx, post, alice, dora); err != nil {
		tt.Fatal(err)
	}
	photo := makeObject(tt, t.KindPhoto, "p1", alice.Handle, "a photo", "", aliceKey)
	if err := rcv.ReceivePayload(ctx, photo, alice, bob); err != nil {
		tt.Fatal(err)
	}
	comment := makeObject(tt, t.KindComment, "c1", carol.Handle, "a comment", "g1", carolKey)
	if err := rcv.ReceivePayload(ctx, comment, carol, bob); err != nil {
		tt.Fatal(err)
	}

	mustVisibilityCount(tt, "g1", 2)
	mustVisibilityCount(tt, "p1", 1)
	mustVisibilityCount(tt, "c1", 1)

	// Alice severs the relation to bob: bob loses her objects, dora keeps
	// hers. The comment is carol's, not swept.
	disc, err := envelope.ParsePayload([]byte(
		`<XML><post><disconnect><diaspora_handle>alice@remote.example</diaspora_handle></disconnect></post></XML>`))
	if err != nil {
		tt.Fatal(err)
	}
	if err := rcv.ReceivePayload(ctx, disc, alice, bob); err != nil {
		tt.Fatal("disconnect failed:", err)
	}

	mustVisibilityCount(tt, "g1", 1)
	mustVisibilityCount(tt, "c1", 1)
	if _, err := store.Objects.Get("p1"); !errors.Is(err, t.ErrNotFound) {
		tt.Error("orphaned photo not collected")
	}
	if _, err := store.Objects.Get("g1"); err != nil {
		tt.Error("post still referenced by dora was collected")
	}

	// Dora disconnects locally: the post loses its last reference and the
	// cascade takes carol's comment with it.
	if _, err := rcv.Disconnect(dora, alice); err != nil {
		tt.Fatal("local disconnect failed:", err)
	}
	if _, err := store.Objects.Get("g1"); !errors.Is(err, t.ErrNotFound) {
		tt.Error("unreferenced post not collected")
	}
	if _, err := store.Objects.Get("c1"); !errors.Is(err, t.ErrNotFound) {
		tt.Error("comment not collected with its parent")
	}
}
