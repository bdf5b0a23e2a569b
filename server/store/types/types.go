// Package types defines the objects exchanged between the pipeline and the
// storage adapters.
package types

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"
)

// Storage error variants.
var (
	// ErrNotFound means the requested object was not found in storage.
	ErrNotFound = errors.New("types: not found")
	// ErrDuplicate means the object already exists and cannot be inserted again.
	ErrDuplicate = errors.New("types: duplicate object")
	// ErrConflict means the operation lost a race against a concurrent update
	// and may be retried from scratch.
	ErrConflict = errors.New("types: storage conflict")
	// ErrMalformed means the object fails basic validation.
	ErrMalformed = errors.New("types: malformed object")
)

// Uid is a database-specific record id, suitable to be used as a primary key.
type Uid uint64

// ZeroUid is a placeholder for a missing Uid.
var ZeroUid Uid = 0

const (
	uidBase64Unpadded = 11
	uidBase64Padded   = 12
)

// IsZero checks if the Uid is uninitialized.
func (uid Uid) IsZero() bool {
	return uid == 0
}

// MarshalBinary converts Uid to byte slice.
func (uid Uid) MarshalBinary() ([]byte, error) {
	dst := make([]byte, 8)
	binary.LittleEndian.PutUint64(dst, uint64(uid))
	return dst, nil
}

// UnmarshalText reads Uid from an unpadded base64url representation.
func (uid *Uid) UnmarshalText(src []byte) error {
	if len(src) != uidBase64Unpadded {
		return errors.New("Uid.UnmarshalText: invalid length")
	}
	dec := make([]byte, base64.URLEncoding.DecodedLen(uidBase64Padded))
	for len(src) < uidBase64Padded {
		src = append(src, '=')
	}
	count, err := base64.URLEncoding.Decode(dec, src)
	if count < 8 {
		if err != nil {
			return errors.New("Uid.UnmarshalText: failed to decode " + err.Error())
		}
		return errors.New("Uid.UnmarshalText: failed to decode")
	}
	*uid = Uid(binary.LittleEndian.Uint64(dec))
	return nil
}

// MarshalText converts Uid to an unpadded base64url representation.
func (uid Uid) MarshalText() ([]byte, error) {
	if uid == 0 {
		return []byte{}, nil
	}
	src := make([]byte, 8)
	dst := make([]byte, base64.URLEncoding.EncodedLen(8))
	binary.LittleEndian.PutUint64(src, uint64(uid))
	base64.URLEncoding.Encode(dst, src)
	return dst[0:uidBase64Unpadded], nil
}

func (uid Uid) String() string {
	buf, _ := uid.MarshalText()
	return string(buf)
}

// ParseUid parses a string previously produced by Uid.String.
func ParseUid(s string) Uid {
	var uid Uid
	uid.UnmarshalText([]byte(s))
	return uid
}

// TimeNow returns current time rounded to millisecond precision.
func TimeNow() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

// ObjHeader is the shared header of all stored objects.
type ObjHeader struct {
	Id        string
	id        Uid
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Uid returns the id of the object as Uid.
func (h *ObjHeader) Uid() Uid {
	if h.id.IsZero() && h.Id != "" {
		h.id.UnmarshalText([]byte(h.Id))
	}
	return h.id
}

// SetUid assigns the given Uid to the object.
func (h *ObjHeader) SetUid(uid Uid) {
	h.id = uid
	h.Id = uid.String()
}

// InitTimes initializes time.Time variables in the header to current time.
func (h *ObjHeader) InitTimes() {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = TimeNow()
	}
	h.UpdatedAt = h.CreatedAt
}

// Profile is the displayable part of a person, refreshed on re-discovery.
type Profile struct {
	Name      string
	AvatarURL string
}

// User is a local account. Only local users receive content; persons are
// the authors. Every user also has a Person record under the same handle.
type User struct {
	ObjHeader
	// Globally unique handle, e.g. "alice@pod.example.org".
	Handle string
	// PEM-encoded RSA private key of the account. The pipeline reads only
	// the public half, for verifying parent-context signatures on posts
	// this user owns.
	PrivKey string
}

// Person is a content author, either a user of this pod or a remote one
// created lazily on first successful discovery. Remote persons are immutable
// except for profile refresh.
type Person struct {
	ObjHeader
	// Globally unique handle.
	Handle string
	// PEM-encoded RSA public key used to verify this person's signatures.
	PubKey string
	// True if the person belongs to a user of this pod.
	Local bool
	// Displayable profile data, may be absent for remote persons.
	Profile *Profile
}

// Contact is a directed relation owning user -> person. Created and edited
// only by user-facing flows; the pipeline treats contacts as read-only.
type Contact struct {
	ObjHeader
	// Owner of the relation.
	UserId Uid
	// The person this contact points at.
	PersonId Uid
	// Ids of the owner's aspects which include this contact.
	Aspects []Uid
}

// Aspect is a named grouping of contacts owned by exactly one user. The
// pipeline never inserts aspects.
type Aspect struct {
	ObjHeader
	// Owning user.
	UserId Uid
	// Display name, unique per user.
	Name string
}

// ObjectKind determines the mutability policy of an object. The policy is
// fixed at creation and never re-read from incoming payloads.
type ObjectKind string

// Object kinds understood by the pipeline.
const (
	// Plain text post, immutable once created.
	KindStatus ObjectKind = "status_message"
	// Media post, the author may edit the caption after publishing.
	KindPhoto ObjectKind = "photo"
	// Comment on a post, immutable.
	KindComment ObjectKind = "comment"
)

// Mutable reports whether objects of this kind accept in-place updates
// from their author.
func (k ObjectKind) Mutable() bool {
	return k == KindPhoto
}

// Valid reports whether the kind is one the pipeline understands.
func (k ObjectKind) Valid() bool {
	switch k {
	case KindStatus, KindPhoto, KindComment:
		return true
	}
	return false
}

// Object is a post or a comment. An object exists once per pod no matter how
// many local users can see it; per-user exposure is tracked by Visibility
// records and the derived reference count.
type Object struct {
	ObjHeader
	// Author-assigned globally unique id.
	Guid string
	// Kind of the object.
	Kind ObjectKind
	// Id of the authoring person.
	Author Uid
	// Content carries the message text or the media caption.
	Content string
	// Guid of the parent post. Set for comments only.
	ParentGuid string
	// Whether the author may overwrite content in place. Derived from Kind
	// at creation time.
	Mutable bool
	// Number of visibility records pointing at this object, pod-wide.
	// Maintained by the adapter, read-only to callers.
	RefCount int
}

// Visibility marks that an object is currently exposed to a user. At most
// one record exists per (user, guid) pair.
type Visibility struct {
	ObjHeader
	// The local user who can see the object.
	UserId Uid
	// Guid of the visible object.
	Guid string
}
