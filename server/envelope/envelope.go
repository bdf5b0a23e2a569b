// Package envelope implements the wire format of inbound federation
// payloads: a salmon-style signed transport envelope wrapping an XML payload
// document. The envelope proves who pushed the document; the payload carries
// its own author signature(s) which are verified separately.
package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"strings"
)

// Parsing errors.
var (
	// ErrMalformed means the document cannot be decoded.
	ErrMalformed = errors.New("envelope: malformed document")
	// ErrUnsupported means the document is well-formed but uses an algorithm
	// or encoding this node does not speak.
	ErrUnsupported = errors.New("envelope: unsupported algorithm or encoding")
)

// Only combination accepted in magic envelopes.
const (
	AlgRSASHA256   = "RSA-SHA256"
	EncodingBase64 = "base64url"
	DataTypeXML    = "application/xml"
)

// MagicEnvelope is the unwrapped transport envelope: the inner payload
// document plus the sender's signature over it.
type MagicEnvelope struct {
	// Handle of the node user who pushed the envelope. Not trusted until
	// the signature is verified against the resolved identity.
	Sender string
	// Decoded inner payload document.
	Data []byte
	// MIME type of Data.
	DataType string
	// Signature algorithm, always RSA-SHA256.
	Alg string
	// Decoded signature over SigningBase().
	Sig []byte
}

// wire representation of the envelope
type envData struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type envXML struct {
	XMLName  xml.Name `xml:"env"`
	Sender   string   `xml:"sender"`
	Data     envData  `xml:"data"`
	Encoding string   `xml:"encoding"`
	Alg      string   `xml:"alg"`
	Sig      string   `xml:"sig"`
}

// ParseMagicEnvelope decodes a transport envelope. The signature is not
// checked here; callers verify it against the resolved sender key.
func ParseMagicEnvelope(raw []byte) (*MagicEnvelope, error) {
	var env envXML
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, ErrMalformed
	}
	if env.Sender == "" || env.Data.Value == "" || env.Sig == "" {
		return nil, ErrMalformed
	}
	if env.Alg != AlgRSASHA256 || env.Encoding != EncodingBase64 {
		return nil, ErrUnsupported
	}

	data, err := base64.URLEncoding.DecodeString(strings.TrimSpace(env.Data.Value))
	if err != nil {
		return nil, ErrMalformed
	}
	sig, err := base64.URLEncoding.DecodeString(strings.TrimSpace(env.Sig))
	if err != nil {
		return nil, ErrMalformed
	}

	return &MagicEnvelope{
		Sender:   env.Sender,
		Data:     data,
		DataType: env.Data.Type,
		Alg:      env.Alg,
		Sig:      sig,
	}, nil
}

// SigningBase returns the byte string the envelope signature covers:
// base64url encodings of data, data type, encoding and algorithm, joined
// with periods. Binding the metadata into the signed text prevents
// algorithm-substitution tricks.
func (me *MagicEnvelope) SigningBase() []byte {
	parts := [][]byte{
		[]byte(base64.URLEncoding.EncodeToString(me.Data)),
		[]byte(base64.URLEncoding.EncodeToString([]byte(me.DataType))),
		[]byte(base64.URLEncoding.EncodeToString([]byte(EncodingBase64))),
		[]byte(base64.URLEncoding.EncodeToString([]byte(me.Alg))),
	}
	return bytes.Join(parts, []byte("."))
}

// BuildMagicEnvelope wraps a payload document for transport. The signature
// must have been computed over the SigningBase of an envelope with the same
// data. Used by tests and local loopback delivery; outbound federation
// proper lives elsewhere.
func BuildMagicEnvelope(sender string, data, sig []byte) []byte {
	env := envXML{
		Sender:   sender,
		Data:     envData{Type: DataTypeXML, Value: base64.URLEncoding.EncodeToString(data)},
		Encoding: EncodingBase64,
		Alg:      AlgRSASHA256,
		Sig:      base64.URLEncoding.EncodeToString(sig),
	}
	out, _ := xml.Marshal(&env)
	return out
}
