// Package adapter contains the interfaces to be implemented by the database adapter.
package adapter

import (
	"encoding/json"

	t "github.com/seednode/pod/server/store/types"
)

// Adapter is the interface that must be implemented by a database adapter.
// The current schema supports a single connection by database type.
type Adapter interface {
	// General

	// Open and configure the adapter.
	Open(config json.RawMessage) error
	// Close the adapter.
	Close() error
	// IsOpen checks if the adapter is ready for use.
	IsOpen() bool
	// GetName returns the name of the adapter.
	GetName() string
	// SetUidGenerator assigns the generator used for new record ids.
	SetUidGenerator(ug *t.UidGenerator) error
	// CreateDb creates the database optionally dropping an existing database first.
	CreateDb(reset bool) error
	// Version returns adapter version.
	Version() int
	// Stats returns a DB connection stats object.
	Stats() interface{}

	// Users and persons

	// UserCreate creates a local user record.
	UserCreate(user *t.User) error
	// UserGet loads a user by handle. Returns types.ErrNotFound if missing.
	UserGet(handle string) (*t.User, error)
	// PersonCreate inserts a person keyed by handle. If a person with the
	// same handle already exists the stored record wins and is returned;
	// the insert is reported through the boolean.
	PersonCreate(person *t.Person) (*t.Person, bool, error)
	// PersonGet loads a person by handle. Returns types.ErrNotFound if missing.
	PersonGet(handle string) (*t.Person, error)
	// PersonGetByUid loads a person by internal id.
	PersonGetByUid(uid t.Uid) (*t.Person, error)
	// PersonUpdateProfile replaces the cached profile of a person.
	PersonUpdateProfile(uid t.Uid, profile *t.Profile) error

	// Aspects and contacts: read-only to the receiving pipeline, writes
	// exist for provisioning flows and tests.

	// AspectCreate inserts an aspect.
	AspectCreate(aspect *t.Aspect) error
	// AspectsForUser loads all aspects owned by the user.
	AspectsForUser(uid t.Uid) ([]t.Aspect, error)
	// ContactCreate inserts a contact edge.
	ContactCreate(contact *t.Contact) error
	// ContactGet loads the contact edge owner -> person, types.ErrNotFound
	// if the person is not a contact of the owner.
	ContactGet(ownerUid, personUid t.Uid) (*t.Contact, error)
	// ContactDelete removes the contact edge owner -> person.
	ContactDelete(ownerUid, personUid t.Uid) error

	// Objects

	// ObjectCreate inserts an object keyed by guid if absent. Reports
	// whether the record was inserted; when it was not, the stored object
	// is returned unchanged.
	ObjectCreate(obj *t.Object) (*t.Object, bool, error)
	// ObjectGet loads an object by guid. Returns types.ErrNotFound if missing.
	ObjectGet(guid string) (*t.Object, error)
	// ObjectUpdateContent overwrites the mutable content of an object.
	ObjectUpdateContent(guid string, content string) error
	// CommentsForParent loads all comments attached to the given parent guid.
	CommentsForParent(parentGuid string) ([]t.Object, error)

	// Visibility

	// VisibilityAdd records that the object is exposed to the user. The call
	// is idempotent; it reports whether a new record was created.
	VisibilityAdd(uid t.Uid, guid string) (bool, error)
	// VisibilityRemove deletes the (user, guid) record if present. When the
	// removed record was the last one pointing at the object pod-wide, the
	// object and its orphaned comments are deleted in the same transaction.
	// Reports whether the object was garbage-collected.
	VisibilityRemove(uid t.Uid, guid string) (bool, error)
	// VisibilityCount returns the pod-wide number of visibility records for
	// the guid.
	VisibilityCount(guid string) (int, error)
	// VisibleGuids returns the guids currently exposed to the user.
	VisibleGuids(uid t.Uid) ([]string, error)
	// GuidsAuthoredBy returns the guids of objects authored by the person
	// which are currently visible to the user. Used by the disconnect sweep.
	GuidsAuthoredBy(personUid, visibleTo t.Uid) ([]string, error)
}
