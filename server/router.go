/******************************************************************************
 *
 *  Description :
 *    Aspect routing: which of a recipient's aspects should list an object.
 *    Strictly read-only over aspects and contacts.
 *
 *****************************************************************************/

package main

import (
	"errors"

	"github.com/seednode/pod/server/store"
	t "github.com/seednode/pod/server/store/types"
)

// routeAspects returns every aspect owned by the recipient whose contact
// list includes the author. The empty set is a valid answer: the object is
// stored but not exposed, e.g. a comment by a stranger on a shared post.
// Aspects are never created here.
func routeAspects(recipient *t.User, author *t.Person) ([]t.Aspect, error) {
	contact, err := store.Contacts.Get(recipient.Uid(), author.Uid())
	if errors.Is(err, t.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	aspects, err := store.Aspects.ForUser(recipient.Uid())
	if err != nil {
		return nil, err
	}

	member := make(map[t.Uid]bool, len(contact.Aspects))
	for _, id := range contact.Aspects {
		member[id] = true
	}

	var matched []t.Aspect
	for _, aspect := range aspects {
		if member[aspect.Uid()] {
			matched = append(matched, aspect)
		}
	}
	return matched, nil
}
