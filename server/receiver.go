/******************************************************************************
 *
 *  Description :
 *    The receiving pipeline orchestrator. Single entry point for inbound
 *    federation payloads: unwrap, authenticate, merge, route, expose,
 *    notify.
 *
 *****************************************************************************/

package main

import (
	"context"
	"errors"
	"time"

	"github.com/seednode/pod/server/concurrency"
	"github.com/seednode/pod/server/envelope"
	"github.com/seednode/pod/server/logs"
	"github.com/seednode/pod/server/push"
	"github.com/seednode/pod/server/store"
	t "github.com/seednode/pod/server/store/types"
)

// Receive failure taxonomy. All of these are recoverable at the call
// boundary: a failed receive leaves no partial state.
var (
	// ErrMalformedPayload: the envelope or payload cannot be decoded.
	ErrMalformedPayload = errors.New("receive: malformed payload")
	// ErrUnknownSender: the envelope sender could not be resolved.
	ErrUnknownSender = errors.New("receive: unknown sender")
	// ErrUnresolvableIdentity: a claimed author could not be resolved.
	ErrUnresolvableIdentity = errors.New("receive: unresolvable identity")
	// ErrInvalidSignature: an envelope or payload signature failed to verify.
	ErrInvalidSignature = errors.New("receive: invalid signature")
	// ErrAuthorMismatch: payload claims an existing guid under a different
	// author. Possible spoof, nothing is overwritten.
	ErrAuthorMismatch = errors.New("receive: author mismatch")
	// ErrOrphanObject: comment whose parent is unknown to this node.
	ErrOrphanObject = errors.New("receive: orphan object")
	// ErrStorageConflict: benign concurrent-update race, safe to retry the
	// whole receive from scratch.
	ErrStorageConflict = errors.New("receive: storage conflict")
)

// Receiver drives the pipeline: Verifier -> Resolver -> Merger -> Router ->
// Ledger, then at most one notification per received object.
type Receiver struct {
	res    *resolver
	ledger *ledger
	// Serializes receives which target the same object guid.
	objLock *concurrency.KeyMutex
}

// NewReceiver creates a receiver on top of the given resolver.
func NewReceiver(res *resolver) *Receiver {
	return &Receiver{
		res:     res,
		ledger:  newLedger(),
		objLock: concurrency.NewKeyMutex(128),
	}
}

// Receive handles a wrapped transport envelope addressed to the recipient:
// unwraps it, authenticates the sender, then processes the inner payload.
func (rcv *Receiver) Receive(ctx context.Context, raw []byte, recipient *t.User) error {
	env, err := envelope.ParseMagicEnvelope(raw)
	if err != nil {
		return rcv.done(ErrMalformedPayload)
	}

	sender, err := rcv.res.resolve(ctx, env.Sender)
	if err != nil {
		if errors.Is(err, ErrUnresolvableIdentity) {
			return rcv.done(ErrUnknownSender)
		}
		return rcv.done(err)
	}

	if !verifyEnvelope(env, sender) {
		return rcv.done(ErrInvalidSignature)
	}

	payload, err := envelope.ParsePayload(env.Data)
	if err != nil {
		return rcv.done(ErrMalformedPayload)
	}

	return rcv.ReceivePayload(ctx, payload, sender, recipient)
}

// ReceivePayload handles a parsed payload from an already-authenticated
// sender. This is the direct-delivery entry point; Receive funnels into it.
// A storage conflict is retried once: the race it signals is benign and the
// whole pipeline is idempotent.
func (rcv *Receiver) ReceivePayload(ctx context.Context, payload envelope.Payload,
	sender *t.Person, recipient *t.User) error {

	err := rcv.dispatch(ctx, payload, sender, recipient)
	if errors.Is(err, ErrStorageConflict) {
		logs.Warning.Println("receiver: storage conflict, retrying once")
		err = rcv.dispatch(ctx, payload, sender, recipient)
	}
	return rcv.done(err)
}

// done records the outcome in stats and passes the error through.
func (rcv *Receiver) done(err error) error {
	statsCountReceive(err)
	return err
}

func (rcv *Receiver) dispatch(ctx context.Context, payload envelope.Payload,
	sender *t.Person, recipient *t.User) error {

	switch pl := payload.(type) {
	case *envelope.ObjectPayload:
		return rcv.receiveObject(ctx, pl, sender, recipient)
	case *envelope.Retraction:
		return rcv.receiveRetraction(pl, sender, recipient)
	case *envelope.Disconnect:
		return rcv.receiveDisconnect(pl, sender, recipient)
	}
	return ErrMalformedPayload
}

// receiveObject merges a post or comment and updates the recipient's
// visibility of it.
func (rcv *Receiver) receiveObject(ctx context.Context, pl *envelope.ObjectPayload,
	sender *t.Person, recipient *t.User) error {

	// The sender of the envelope and the author of the object may differ:
	// the parent post's author relays comments downstream.
	author := sender
	if pl.AuthorHandle != sender.Handle {
		var err error
		if author, err = rcv.res.resolve(ctx, pl.AuthorHandle); err != nil {
			return err
		}
	}

	if !verifyPayload(pl, author) {
		return ErrInvalidSignature
	}

	// Relayed comments must be countersigned by the parent post's author,
	// which is the sender doing the relaying. Other kinds never carry the
	// second slot.
	if pl.Kind == t.KindComment && author.Uid() != sender.Uid() {
		parent, err := store.Objects.Get(pl.ParentGuid)
		if err != nil {
			if errors.Is(err, t.ErrNotFound) {
				return ErrOrphanObject
			}
			return mapStorageErr(err)
		}
		if parent.Author != sender.Uid() {
			return ErrInvalidSignature
		}
		if !verifyParentAuthor(pl, sender) {
			return ErrInvalidSignature
		}
	}

	rcv.objLock.Lock(pl.Guid)
	defer rcv.objLock.Unlock(pl.Guid)

	obj, isNew, err := mergeObject(pl, author)
	if err != nil {
		return mapStorageErr(err)
	}

	// Route regardless of isNew: another recipient receiving an already
	// stored guid still gains its own visibility record.
	aspects, err := routeAspects(recipient, author)
	if err != nil {
		return mapStorageErr(err)
	}
	if len(aspects) == 0 {
		// Author is not a contact: stored, not exposed.
		return nil
	}

	granted, err := rcv.ledger.grant(recipient.Uid(), obj.Guid)
	if err != nil {
		return mapStorageErr(err)
	}

	// One notification per receive no matter how many aspects matched, and
	// none for a no-op refresh of a pair that was already visible.
	if granted {
		rcv.notify(recipient, obj, author)
	} else if isNew {
		// A freshly created object must have gained a record.
		logs.Error.Println("receiver: new object", obj.Guid, "without visibility grant")
	}
	return nil
}

// receiveRetraction withdraws the recipient's visibility of an object at
// its author's request.
func (rcv *Receiver) receiveRetraction(pl *envelope.Retraction,
	sender *t.Person, recipient *t.User) error {

	// A retraction is only honored from its own author.
	if pl.AuthorHandle != sender.Handle {
		return ErrAuthorMismatch
	}
	if !verifyPayload(pl, sender) {
		return ErrInvalidSignature
	}

	obj, err := store.Objects.Get(pl.Guid)
	if err != nil {
		if errors.Is(err, t.ErrNotFound) {
			// Already gone, nothing to retract.
			return nil
		}
		return mapStorageErr(err)
	}
	if obj.Author != sender.Uid() {
		return ErrAuthorMismatch
	}

	_, err = rcv.ledger.revoke(recipient.Uid(), pl.Guid)
	return mapStorageErr(err)
}

// receiveDisconnect handles a remote person severing the relation to the
// recipient: everything of theirs the recipient could see is revoked.
func (rcv *Receiver) receiveDisconnect(pl *envelope.Disconnect,
	sender *t.Person, recipient *t.User) error {

	if pl.AuthorHandle != sender.Handle {
		return ErrAuthorMismatch
	}

	revoked, err := rcv.ledger.sweepOnDisconnect(recipient.Uid(), sender.Uid())
	if err != nil {
		return mapStorageErr(err)
	}
	logs.Info.Println("receiver:", sender.Handle, "disconnected from",
		recipient.Handle, "-", revoked, "records revoked")
	return nil
}

// Disconnect severs the relation from the local side: the user dropped the
// person as a contact. Same sweep as an inbound disconnect notice. Exposed
// for the contact-management flows which own the contact edge itself.
func (rcv *Receiver) Disconnect(user *t.User, person *t.Person) (int, error) {
	return rcv.ledger.sweepOnDisconnect(user.Uid(), person.Uid())
}

func (rcv *Receiver) notify(recipient *t.User, obj *t.Object, author *t.Person) {
	what := push.ActPost
	if obj.Kind == t.KindComment {
		what = push.ActComment
	}
	push.Push(&push.Receipt{
		To: recipient.Uid(),
		Payload: push.Payload{
			What:      what,
			Guid:      obj.Guid,
			Kind:      string(obj.Kind),
			From:      author.Handle,
			Timestamp: time.Now().UTC(),
		},
	})
}

// mapStorageErr translates adapter-level sentinels into the receive taxonomy.
func mapStorageErr(err error) error {
	if errors.Is(err, t.ErrConflict) {
		return ErrStorageConflict
	}
	return err
}
