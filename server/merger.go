/******************************************************************************
 *
 *  Description :
 *    Object merge: find-or-create the canonical local object for a payload,
 *    applying the per-kind mutability policy.
 *
 *****************************************************************************/

package main

import (
	"errors"

	"github.com/seednode/pod/server/envelope"
	"github.com/seednode/pod/server/store"
	t "github.com/seednode/pod/server/store/types"
)

// mergeObject finds or creates the object referenced by the payload. The
// caller holds the guid lock, so no other receive is mutating the same
// object concurrently.
//
// Rules, in order:
//   - comments require a locally known parent, otherwise ErrOrphanObject;
//   - a guid clash with a different stored author is ErrAuthorMismatch,
//     the stored object is never touched;
//   - a re-receive of an immutable object is a silent no-op refresh;
//   - a re-receive of a mutable object by its author overwrites content.
//
// The returned flag reports whether the object was newly created.
func mergeObject(pl *envelope.ObjectPayload, author *t.Person) (*t.Object, bool, error) {
	if !pl.Kind.Valid() {
		return nil, false, ErrMalformedPayload
	}

	if pl.Kind == t.KindComment {
		if _, err := store.Objects.Get(pl.ParentGuid); err != nil {
			if errors.Is(err, t.ErrNotFound) {
				return nil, false, ErrOrphanObject
			}
			return nil, false, err
		}
	}

	obj, isNew, err := store.Objects.Create(&t.Object{
		Guid:       pl.Guid,
		Kind:       pl.Kind,
		Author:     author.Uid(),
		Content:    pl.Content,
		ParentGuid: pl.ParentGuid,
	})
	if err != nil {
		return nil, false, err
	}
	if isNew {
		return obj, true, nil
	}

	// The guid already exists. Only its original author may refresh it.
	if obj.Author != author.Uid() {
		return nil, false, ErrAuthorMismatch
	}

	if !obj.Mutable {
		// Not an error: the payload is discarded, the stored object stands.
		return obj, false, nil
	}

	if obj.Content != pl.Content {
		if err = store.Objects.UpdateContent(obj.Guid, pl.Content); err != nil {
			return nil, false, err
		}
		obj.Content = pl.Content
	}
	return obj, false, nil
}
