/******************************************************************************
 *
 *  Description :
 *    Signature checks for inbound envelopes and payloads. All checks are
 *    pure: nothing is written on failure.
 *
 *****************************************************************************/

package main

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"

	"github.com/seednode/pod/server/envelope"
	t "github.com/seednode/pod/server/store/types"
)

// parsePublicKey decodes a PEM-encoded RSA public key.
func parsePublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("verify: no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("verify: not an RSA key")
	}
	return rsaPub, nil
}

// checkSig verifies an RSA-SHA256 signature over signable with the person's
// public key. Returns false on any key or signature problem.
func checkSig(person *t.Person, signable, sig []byte) bool {
	if person == nil || len(sig) == 0 {
		return false
	}
	pub, err := parsePublicKey(person.PubKey)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(signable)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
}

// verifyEnvelope checks the transport signature against the resolved sender.
func verifyEnvelope(env *envelope.MagicEnvelope, sender *t.Person) bool {
	return checkSig(sender, env.SigningBase(), env.Sig)
}

// verifyPayload checks the author signature of a payload against the claimed
// author's key. Disconnect notices carry no signature of their own; they are
// authenticated by the transport envelope alone.
func verifyPayload(payload envelope.Payload, author *t.Person) bool {
	switch pl := payload.(type) {
	case *envelope.ObjectPayload:
		return checkSig(author, pl.SignableText(), pl.AuthorSig)
	case *envelope.Retraction:
		return checkSig(author, pl.SignableText(), pl.AuthorSig)
	case *envelope.Disconnect:
		return true
	}
	return false
}

// verifyParentAuthor checks the parent-context signature of a relayed
// comment: the parent post's author countersigns comments it relays
// downstream. Only comments carry this second slot.
func verifyParentAuthor(pl *envelope.ObjectPayload, parentAuthor *t.Person) bool {
	return checkSig(parentAuthor, pl.SignableText(), pl.ParentAuthorSig)
}
