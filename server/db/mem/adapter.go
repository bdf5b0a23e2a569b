// Package mem is an in-memory storage adapter. It keeps all records in maps
// guarded by a single mutex, which trivially provides the atomicity the
// adapter contract requires. Intended for tests and single-pod development;
// nothing survives a restart.
package mem

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/seednode/pod/server/store"
	t "github.com/seednode/pod/server/store/types"
)

const adapterName = "mem"

const adapterVersion = 1

type contactKey struct {
	owner  t.Uid
	person t.Uid
}

type visKey struct {
	user t.Uid
	guid string
}

// adapter holds the in-memory tables.
type adapter struct {
	mu sync.Mutex

	users        map[string]*t.User   // keyed by handle
	persons      map[string]*t.Person // keyed by handle
	personsByUid map[t.Uid]*t.Person
	aspects      map[t.Uid][]*t.Aspect // keyed by owning user
	contacts     map[contactKey]*t.Contact
	objects      map[string]*t.Object // keyed by guid
	visibility   map[visKey]*t.Visibility

	uGen *t.UidGenerator
	open bool
}

// Open initializes the in-memory tables. The config is accepted for
// interface parity and ignored.
func (a *adapter) Open(jsonconfig json.RawMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.open {
		return errors.New("mem adapter is already open")
	}
	a.reset()
	a.open = true
	return nil
}

// Close discards all stored records.
func (a *adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.open = false
	a.reset()
	return nil
}

// IsOpen returns true if the adapter is ready for use.
func (a *adapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open
}

// GetName returns the name of the adapter.
func (a *adapter) GetName() string {
	return adapterName
}

// SetUidGenerator remembers the generator. The mem adapter itself does not
// mint ids but tests may reach for it.
func (a *adapter) SetUidGenerator(ug *t.UidGenerator) error {
	a.uGen = ug
	return nil
}

// CreateDb clears the tables when reset is requested.
func (a *adapter) CreateDb(reset bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if reset {
		a.reset()
	}
	return nil
}

// Version returns adapter version.
func (a *adapter) Version() int {
	return adapterVersion
}

// Stats returns DB connection stats object.
func (a *adapter) Stats() interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	return map[string]int{
		"users":      len(a.users),
		"persons":    len(a.persons),
		"objects":    len(a.objects),
		"visibility": len(a.visibility),
	}
}

func (a *adapter) reset() {
	a.users = make(map[string]*t.User)
	a.persons = make(map[string]*t.Person)
	a.personsByUid = make(map[t.Uid]*t.Person)
	a.aspects = make(map[t.Uid][]*t.Aspect)
	a.contacts = make(map[contactKey]*t.Contact)
	a.objects = make(map[string]*t.Object)
	a.visibility = make(map[visKey]*t.Visibility)
}

// UserCreate creates a local user record.
func (a *adapter) UserCreate(user *t.User) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.users[user.Handle]; ok {
		return t.ErrDuplicate
	}
	cp := *user
	a.users[user.Handle] = &cp
	return nil
}

// UserGet loads a user by handle.
func (a *adapter) UserGet(handle string) (*t.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user, ok := a.users[handle]
	if !ok {
		return nil, t.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

// PersonCreate inserts a person if the handle is still free. On a duplicate
// handle the stored record wins: this is what makes concurrent resolution of
// the same handle collapse to a single identity.
func (a *adapter) PersonCreate(person *t.Person) (*t.Person, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.persons[person.Handle]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *person
	a.persons[person.Handle] = &cp
	a.personsByUid[person.Uid()] = &cp
	out := cp
	return &out, true, nil
}

// PersonGet loads a person by handle.
func (a *adapter) PersonGet(handle string) (*t.Person, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	person, ok := a.persons[handle]
	if !ok {
		return nil, t.ErrNotFound
	}
	cp := *person
	return &cp, nil
}

// PersonGetByUid loads a person by internal id.
func (a *adapter) PersonGetByUid(uid t.Uid) (*t.Person, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	person, ok := a.personsByUid[uid]
	if !ok {
		return nil, t.ErrNotFound
	}
	cp := *person
	return &cp, nil
}

// PersonUpdateProfile replaces the cached profile of a person.
func (a *adapter) PersonUpdateProfile(uid t.Uid, profile *t.Profile) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	person, ok := a.personsByUid[uid]
	if !ok {
		return t.ErrNotFound
	}
	if profile == nil {
		person.Profile = nil
	} else {
		cp := *profile
		person.Profile = &cp
	}
	person.UpdatedAt = t.TimeNow()
	return nil
}

// AspectCreate inserts an aspect.
func (a *adapter) AspectCreate(aspect *t.Aspect) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, asp := range a.aspects[aspect.UserId] {
		if asp.Name == aspect.Name {
			return t.ErrDuplicate
		}
	}
	cp := *aspect
	a.aspects[aspect.UserId] = append(a.aspects[aspect.UserId], &cp)
	return nil
}

// AspectsForUser loads all aspects owned by the user.
func (a *adapter) AspectsForUser(uid t.Uid) ([]t.Aspect, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []t.Aspect
	for _, asp := range a.aspects[uid] {
		out = append(out, *asp)
	}
	return out, nil
}

// ContactCreate inserts a contact edge.
func (a *adapter) ContactCreate(contact *t.Contact) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := contactKey{owner: contact.UserId, person: contact.PersonId}
	if _, ok := a.contacts[key]; ok {
		return t.ErrDuplicate
	}
	cp := *contact
	cp.Aspects = append([]t.Uid(nil), contact.Aspects...)
	a.contacts[key] = &cp
	return nil
}

// ContactGet loads the contact edge owner -> person.
func (a *adapter) ContactGet(ownerUid, personUid t.Uid) (*t.Contact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	contact, ok := a.contacts[contactKey{owner: ownerUid, person: personUid}]
	if !ok {
		return nil, t.ErrNotFound
	}
	cp := *contact
	cp.Aspects = append([]t.Uid(nil), contact.Aspects...)
	return &cp, nil
}

// ContactDelete removes the contact edge owner -> person.
func (a *adapter) ContactDelete(ownerUid, personUid t.Uid) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := contactKey{owner: ownerUid, person: personUid}
	if _, ok := a.contacts[key]; !ok {
		return t.ErrNotFound
	}
	delete(a.contacts, key)
	return nil
}

// ObjectCreate inserts the object if the guid is still free. On a duplicate
// guid the stored object is returned unchanged.
func (a *adapter) ObjectCreate(obj *t.Object) (*t.Object, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.objects[obj.Guid]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *obj
	cp.RefCount = 0
	a.objects[obj.Guid] = &cp
	out := cp
	return &out, true, nil
}

// ObjectGet loads an object by guid.
func (a *adapter) ObjectGet(guid string) (*t.Object, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	obj, ok := a.objects[guid]
	if !ok {
		return nil, t.ErrNotFound
	}
	cp := *obj
	return &cp, nil
}

// ObjectUpdateContent overwrites the mutable content of an object.
func (a *adapter) ObjectUpdateContent(guid string, content string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	obj, ok := a.objects[guid]
	if !ok {
		return t.ErrNotFound
	}
	obj.Content = content
	obj.UpdatedAt = t.TimeNow()
	return nil
}

// CommentsForParent loads all comments attached to the given parent guid.
func (a *adapter) CommentsForParent(parentGuid string) ([]t.Object, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []t.Object
	for _, obj := range a.objects {
		if obj.Kind == t.KindComment && obj.ParentGuid == parentGuid {
			out = append(out, *obj)
		}
	}
	return out, nil
}

// VisibilityAdd records that the object is exposed to the user. Idempotent.
func (a *adapter) VisibilityAdd(uid t.Uid, guid string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	obj, ok := a.objects[guid]
	if !ok {
		return false, t.ErrNotFound
	}
	key := visKey{user: uid, guid: guid}
	if _, ok := a.visibility[key]; ok {
		return false, nil
	}
	vis := &t.Visibility{UserId: uid, Guid: guid}
	vis.InitTimes()
	a.visibility[key] = vis
	obj.RefCount++
	return true, nil
}

// VisibilityRemove deletes the (user, guid) record. The record removal, the
// reference count check and the garbage collection all happen under the one
// adapter mutex, so two racing removes of the last two references cannot
// both skip (or both attempt) the deletion.
func (a *adapter) VisibilityRemove(uid t.Uid, guid string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := visKey{user: uid, guid: guid}
	if _, ok := a.visibility[key]; !ok {
		return false, nil
	}
	delete(a.visibility, key)

	obj, ok := a.objects[guid]
	if !ok {
		return false, nil
	}
	obj.RefCount--
	if obj.RefCount > 0 {
		return false, nil
	}
	a.deleteObjectTree(guid)
	return true, nil
}

// deleteObjectTree removes the object, its comments, and any visibility
// records pointing at them. Caller must hold the mutex.
func (a *adapter) deleteObjectTree(guid string) {
	delete(a.objects, guid)
	for k := range a.visibility {
		if k.guid == guid {
			delete(a.visibility, k)
		}
	}
	for cguid, obj := range a.objects {
		if obj.Kind == t.KindComment && obj.ParentGuid == guid {
			delete(a.objects, cguid)
			for k := range a.visibility {
				if k.guid == cguid {
					delete(a.visibility, k)
				}
			}
		}
	}
}

// VisibilityCount returns the pod-wide number of visibility records for the guid.
func (a *adapter) VisibilityCount(guid string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	for k := range a.visibility {
		if k.guid == guid {
			count++
		}
	}
	return count, nil
}

// VisibleGuids returns the guids currently exposed to the user.
func (a *adapter) VisibleGuids(uid t.Uid) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []string
	for k := range a.visibility {
		if k.user == uid {
			out = append(out, k.guid)
		}
	}
	return out, nil
}

// GuidsAuthoredBy returns guids of objects authored by the person which are
// currently visible to the user.
func (a *adapter) GuidsAuthoredBy(personUid, visibleTo t.Uid) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []string
	for guid, obj := range a.objects {
		if obj.Author != personUid {
			continue
		}
		if _, ok := a.visibility[visKey{user: visibleTo, guid: guid}]; ok {
			out = append(out, guid)
		}
	}
	return out, nil
}

func init() {
	store.RegisterAdapter(&adapter{})
}
