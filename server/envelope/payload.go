package envelope

import (
	"encoding/base64"
	"encoding/xml"
	"strings"

	t "github.com/seednode/pod/server/store/types"
)

// Payload is a parsed inner document. One of ObjectPayload, Retraction or
// Disconnect.
type Payload interface {
	// Author returns the handle of the person the payload claims as its
	// author.
	Author() string
}

// ObjectPayload announces creation — or, for mutable kinds, an update — of
// a post or comment.
type ObjectPayload struct {
	// Kind of the object, fixes the mutability policy.
	Kind t.ObjectKind
	// Author-assigned globally unique id.
	Guid string
	// Handle of the claimed author.
	AuthorHandle string
	// Message text or media caption.
	Content string
	// Guid of the parent post, comments only.
	ParentGuid string
	// Author's signature over SignableText.
	AuthorSig []byte
	// For comments relayed downstream by the parent post's author: the
	// parent author's signature over the same SignableText. Empty when the
	// comment is delivered directly by its author.
	ParentAuthorSig []byte
}

// Author returns the handle of the claimed author.
func (p *ObjectPayload) Author() string { return p.AuthorHandle }

// SignableText is the canonical byte string covered by the author and
// parent-author signatures. Field order is fixed; a separator that cannot
// appear in guids or handles keeps the text unambiguous.
func (p *ObjectPayload) SignableText() []byte {
	return []byte(strings.Join([]string{p.Guid, p.ParentGuid, p.Content, p.AuthorHandle}, ";"))
}

// Retraction asks to withdraw an object pod-wide. Only honored when signed
// by the object's author.
type Retraction struct {
	// Guid of the object being withdrawn.
	Guid string
	// Handle of the claimed author.
	AuthorHandle string
	// Author's signature over SignableText.
	AuthorSig []byte
}

// Author returns the handle of the claimed author.
func (p *Retraction) Author() string { return p.AuthorHandle }

// SignableText is the canonical byte string covered by the signature.
func (p *Retraction) SignableText() []byte {
	return []byte(strings.Join([]string{"retract", p.Guid, p.AuthorHandle}, ";"))
}

// Disconnect announces that the sender severed the relation to the
// recipient. Triggers the visibility sweep for the sender's objects.
type Disconnect struct {
	// Handle of the person disconnecting.
	AuthorHandle string
}

// Author returns the handle of the person disconnecting.
func (p *Disconnect) Author() string { return p.AuthorHandle }

// Wire representations. The payload document is <XML><post>...</post></XML>
// with exactly one child naming the payload kind.

type objectXML struct {
	Guid            string `xml:"guid"`
	Handle          string `xml:"diaspora_handle"`
	ParentGuid      string `xml:"parent_guid,omitempty"`
	Text            string `xml:"text"`
	AuthorSig       string `xml:"author_signature"`
	ParentAuthorSig string `xml:"parent_author_signature,omitempty"`
}

type retractionXML struct {
	Guid      string `xml:"post_guid"`
	Handle    string `xml:"diaspora_handle"`
	AuthorSig string `xml:"author_signature"`
}

type disconnectXML struct {
	Handle string `xml:"diaspora_handle"`
}

type postXML struct {
	Status     *objectXML     `xml:"status_message"`
	Photo      *objectXML     `xml:"photo"`
	Comment    *objectXML     `xml:"comment"`
	Retraction *retractionXML `xml:"retraction"`
	Disconnect *disconnectXML `xml:"disconnect"`
}

type payloadXML struct {
	XMLName xml.Name `xml:"XML"`
	Post    postXML  `xml:"post"`
}

// ParsePayload decodes a payload document into its typed form.
func ParsePayload(raw []byte) (Payload, error) {
	var doc payloadXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, ErrMalformed
	}

	switch {
	case doc.Post.Status != nil:
		return objectFromXML(doc.Post.Status, t.KindStatus)
	case doc.Post.Photo != nil:
		return objectFromXML(doc.Post.Photo, t.KindPhoto)
	case doc.Post.Comment != nil:
		return objectFromXML(doc.Post.Comment, t.KindComment)
	case doc.Post.Retraction != nil:
		r := doc.Post.Retraction
		if r.Guid == "" || r.Handle == "" {
			return nil, ErrMalformed
		}
		sig, err := decodeSig(r.AuthorSig)
		if err != nil || len(sig) == 0 {
			return nil, ErrMalformed
		}
		return &Retraction{Guid: r.Guid, AuthorHandle: r.Handle, AuthorSig: sig}, nil
	case doc.Post.Disconnect != nil:
		d := doc.Post.Disconnect
		if d.Handle == "" {
			return nil, ErrMalformed
		}
		return &Disconnect{AuthorHandle: d.Handle}, nil
	}
	return nil, ErrMalformed
}

func objectFromXML(obj *objectXML, kind t.ObjectKind) (Payload, error) {
	if obj.Guid == "" || obj.Handle == "" {
		return nil, ErrMalformed
	}
	if kind == t.KindComment && obj.ParentGuid == "" {
		return nil, ErrMalformed
	}
	sig, err := decodeSig(obj.AuthorSig)
	if err != nil || len(sig) == 0 {
		return nil, ErrMalformed
	}
	psig, err := decodeSig(obj.ParentAuthorSig)
	if err != nil {
		return nil, ErrMalformed
	}
	return &ObjectPayload{
		Kind:            kind,
		Guid:            obj.Guid,
		AuthorHandle:    obj.Handle,
		Content:         obj.Text,
		ParentGuid:      obj.ParentGuid,
		AuthorSig:       sig,
		ParentAuthorSig: psig,
	}, nil
}

func decodeSig(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

// EncodePayload renders a payload back into its wire form. Used by tests and
// local loopback delivery.
func EncodePayload(p Payload) ([]byte, error) {
	var doc payloadXML
	switch pl := p.(type) {
	case *ObjectPayload:
		obj := &objectXML{
			Guid:            pl.Guid,
			Handle:          pl.AuthorHandle,
			ParentGuid:      pl.ParentGuid,
			Text:            pl.Content,
			AuthorSig:       base64.URLEncoding.EncodeToString(pl.AuthorSig),
			ParentAuthorSig: encodeSig(pl.ParentAuthorSig),
		}
		switch pl.Kind {
		case t.KindStatus:
			doc.Post.Status = obj
		case t.KindPhoto:
			doc.Post.Photo = obj
		case t.KindComment:
			doc.Post.Comment = obj
		default:
			return nil, ErrMalformed
		}
	case *Retraction:
		doc.Post.Retraction = &retractionXML{
			Guid:      pl.Guid,
			Handle:    pl.AuthorHandle,
			AuthorSig: base64.URLEncoding.EncodeToString(pl.AuthorSig),
		}
	case *Disconnect:
		doc.Post.Disconnect = &disconnectXML{Handle: pl.AuthorHandle}
	default:
		return nil, ErrMalformed
	}
	return xml.Marshal(&doc)
}

func encodeSig(sig []byte) string {
	if len(sig) == 0 {
		return ""
	}
	return base64.URLEncoding.EncodeToString(sig)
}
