// Package store provides methods for registering and accessing database adapters.
package store

import (
	"encoding/json"
	"errors"

	"github.com/seednode/pod/server/store/adapter"
	"github.com/seednode/pod/server/store/types"
)

var adp adapter.Adapter
var availableAdapters = make(map[string]adapter.Adapter)

// Unique ID generator
var uGen types.UidGenerator

type configType struct {
	// 16-byte key for XTEA. Used to initialize types.UidGenerator.
	UidKey []byte `json:"uid_key"`
	// DB adapter name to use. Should be one of those specified in `Adapters`.
	UseAdapter string `json:"use_adapter"`
	// Configurations for individual adapters.
	Adapters map[string]json.RawMessage `json:"adapters"`
}

func openAdapter(workerId int, jsonconf json.RawMessage) error {
	var config configType
	if err := json.Unmarshal(jsonconf, &config); err != nil {
		return errors.New("store: failed to parse config: " + err.Error())
	}

	if adp == nil {
		if len(config.UseAdapter) > 0 {
			// Adapter name specified explicitly.
			if ad, ok := availableAdapters[config.UseAdapter]; ok {
				adp = ad
			} else {
				return errors.New("store: " + config.UseAdapter + " adapter is not available in this binary")
			}
		} else if len(availableAdapters) == 1 {
			// Default to the only entry in availableAdapters.
			for _, v := range availableAdapters {
				adp = v
			}
		} else {
			return errors.New("store: db adapter is not specified. Please set `store_config.use_adapter`")
		}
	}

	if adp.IsOpen() {
		return errors.New("store: connection is already opened")
	}

	// Initialize snowflake.
	if workerId < 0 || workerId > 1023 {
		return errors.New("store: invalid worker ID")
	}

	if err := uGen.Init(uint(workerId), config.UidKey); err != nil {
		return errors.New("store: failed to init snowflake: " + err.Error())
	}

	if err := adp.SetUidGenerator(&uGen); err != nil {
		return err
	}

	var adapterConfig json.RawMessage
	if config.Adapters != nil {
		adapterConfig = config.Adapters[adp.GetName()]
	}

	return adp.Open(adapterConfig)
}

// Open initializes the persistence system. Adapter holds a connection pool
// for a database instance.
//
//	workerId - id of this process to initialize the unique ID generator
//	jsonconf - configuration string
func Open(workerId int, jsonconf json.RawMessage) error {
	return openAdapter(workerId, jsonconf)
}

// Close terminates the connection to the persistent storage.
func Close() error {
	if adp.IsOpen() {
		return adp.Close()
	}
	return nil
}

// IsOpen checks if persistent storage connection has been initialized.
func IsOpen() bool {
	return adp != nil && adp.IsOpen()
}

// GetAdapterName returns the name of the current adapter.
func GetAdapterName() string {
	if adp != nil {
		return adp.GetName()
	}
	return ""
}

// InitDb creates the database if it doesn't exist, optionally dropping an
// existing database first.
func InitDb(jsonconf json.RawMessage, reset bool) error {
	if !IsOpen() {
		if err := openAdapter(1, jsonconf); err != nil {
			return err
		}
	}
	return adp.CreateDb(reset)
}

// RegisterAdapter makes a persistence adapter available.
// If Register is called twice or if the adapter is nil, it panics.
func RegisterAdapter(a adapter.Adapter) {
	if a == nil {
		panic("store: Register adapter is nil")
	}

	adapterName := a.GetName()
	if _, ok := availableAdapters[adapterName]; ok {
		panic("store: adapter '" + adapterName + "' is already registered")
	}
	availableAdapters[adapterName] = a
}

// GetUid generates a unique ID suitable for use as a primary key.
func GetUid() types.Uid {
	return uGen.Get()
}

// GetUidString generates a unique ID as a string.
func GetUidString() string {
	return uGen.GetStr()
}

// DbStats returns a callback returning a db connection stats object.
func DbStats() func() interface{} {
	if !IsOpen() {
		return nil
	}
	return adp.Stats
}

// UsersObjMapper holds methods for persistence mapping of local users.
type UsersObjMapper struct{}

// Users is the ancor for storing/retrieving User objects.
var Users UsersObjMapper

// Create inserts a User object into the database.
func (UsersObjMapper) Create(user *types.User) (*types.User, error) {
	user.SetUid(GetUid())
	user.InitTimes()

	if err := adp.UserCreate(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Get loads a user by handle.
func (UsersObjMapper) Get(handle string) (*types.User, error) {
	return adp.UserGet(handle)
}

// PersonsObjMapper holds methods for persistence mapping of persons
// (content authors, local or remote).
type PersonsObjMapper struct{}

// Persons is the ancor for storing/retrieving Person objects.
var Persons PersonsObjMapper

// Create inserts a person keyed by handle. Insert-if-absent: when another
// resolution has already stored the handle, the stored record wins. The
// boolean reports whether a new record was inserted.
func (PersonsObjMapper) Create(person *types.Person) (*types.Person, bool, error) {
	person.SetUid(GetUid())
	person.InitTimes()

	return adp.PersonCreate(person)
}

// Get loads a person by handle.
func (PersonsObjMapper) Get(handle string) (*types.Person, error) {
	return adp.PersonGet(handle)
}

// GetByUid loads a person by internal id.
func (PersonsObjMapper) GetByUid(uid types.Uid) (*types.Person, error) {
	return adp.PersonGetByUid(uid)
}

// UpdateProfile replaces the cached profile of the person.
func (PersonsObjMapper) UpdateProfile(uid types.Uid, profile *types.Profile) error {
	return adp.PersonUpdateProfile(uid, profile)
}

// AspectsObjMapper holds methods for persistence mapping of aspects.
type AspectsObjMapper struct{}

// Aspects is the ancor for retrieving Aspect objects. The receiving pipeline
// only ever reads aspects; Create exists for provisioning flows.
var Aspects AspectsObjMapper

// Create inserts an Aspect object into the database.
func (AspectsObjMapper) Create(aspect *types.Aspect) (*types.Aspect, error) {
	aspect.SetUid(GetUid())
	aspect.InitTimes()

	if err := adp.AspectCreate(aspect); err != nil {
		return nil, err
	}
	return aspect, nil
}

// ForUser loads all aspects owned by the given user.
func (AspectsObjMapper) ForUser(uid types.Uid) ([]types.Aspect, error) {
	return adp.AspectsForUser(uid)
}

// ContactsObjMapper holds methods for persistence mapping of contact edges.
type ContactsObjMapper struct{}

// Contacts is the ancor for retrieving Contact objects.
var Contacts ContactsObjMapper

// Create inserts a Contact object into the database.
func (ContactsObjMapper) Create(contact *types.Contact) (*types.Contact, error) {
	contact.SetUid(GetUid())
	contact.InitTimes()

	if err := adp.ContactCreate(contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// Get loads the contact edge owner -> person.
func (ContactsObjMapper) Get(ownerUid, personUid types.Uid) (*types.Contact, error) {
	return adp.ContactGet(ownerUid, personUid)
}

// Delete removes the contact edge owner -> person.
func (ContactsObjMapper) Delete(ownerUid, personUid types.Uid) error {
	return adp.ContactDelete(ownerUid, personUid)
}

// ObjectsObjMapper holds methods for persistence mapping of posts and comments.
type ObjectsObjMapper struct{}

// Objects is the ancor for storing/retrieving Object records.
var Objects ObjectsObjMapper

// Create inserts the object if no object with the same guid exists yet.
// The boolean reports whether the record was inserted; when it was not,
// the previously stored object is returned.
func (ObjectsObjMapper) Create(obj *types.Object) (*types.Object, bool, error) {
	obj.SetUid(GetUid())
	obj.InitTimes()
	obj.Mutable = obj.Kind.Mutable()

	return adp.ObjectCreate(obj)
}

// Get loads an object by guid.
func (ObjectsObjMapper) Get(guid string) (*types.Object, error) {
	return adp.ObjectGet(guid)
}

// UpdateContent overwrites the mutable content of an object.
func (ObjectsObjMapper) UpdateContent(guid, content string) error {
	return adp.ObjectUpdateContent(guid, content)
}

// CommentsForParent loads comments attached to a parent post.
func (ObjectsObjMapper) CommentsForParent(parentGuid string) ([]types.Object, error) {
	return adp.CommentsForParent(parentGuid)
}

// VisibilityObjMapper holds methods for the visibility ledger records.
type VisibilityObjMapper struct{}

// Visibility is the ancor for storing/retrieving Visibility records.
var Visibility VisibilityObjMapper

// Add records that the object is exposed to the user. Idempotent. Reports
// whether a new record was created.
func (VisibilityObjMapper) Add(uid types.Uid, guid string) (bool, error) {
	return adp.VisibilityAdd(uid, guid)
}

// Remove deletes the (user, guid) record. When it was the object's last
// record pod-wide, the object and orphaned comments are deleted too.
// Reports whether the object was garbage-collected.
func (VisibilityObjMapper) Remove(uid types.Uid, guid string) (bool, error) {
	return adp.VisibilityRemove(uid, guid)
}

// Count returns the pod-wide number of visibility records for the guid.
func (VisibilityObjMapper) Count(guid string) (int, error) {
	return adp.VisibilityCount(guid)
}

// GuidsFor returns the guids currently exposed to the user.
func (VisibilityObjMapper) GuidsFor(uid types.Uid) ([]string, error) {
	return adp.VisibleGuids(uid)
}

// AuthoredBy returns guids of objects authored by the person and visible
// to the user.
func (VisibilityObjMapper) AuthoredBy(personUid, visibleTo types.Uid) ([]string, error) {
	return adp.GuidsAuthoredBy(personUid, visibleTo)
}
