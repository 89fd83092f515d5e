// Package signer issues and verifies capability links for acta participants.
//
// A capability signature is an HMAC-SHA256 over a canonical payload that binds the acta,
// the participant and, for document downloads, the document. Signatures are stateless and
// never expire; revoking them would require adding an epoch to the payload.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
)

// ErrMissingSecret is returned by New when no signing secret is configured.
var ErrMissingSecret = errors.New("acta link signing secret is not configured")

// Kind selects the payload shape. Each kind has its own signature space.
type Kind int

const (
	KindApproval Kind = iota
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindApproval:
		return "approval"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

const delimiter = ":"

// Signer is safe for concurrent use. The secret is read-only after construction.
type Signer struct {
	secret []byte
}

// New builds a Signer. An empty secret is a startup error.
func New(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Payload returns the canonical string that gets signed.
func Payload(kind Kind, actaID, participantID, documentID string) string {
	payload := "acta" + delimiter + actaID + delimiter + "integrante" + delimiter + participantID
	if kind == KindDocument {
		payload += delimiter + "doc" + delimiter + documentID
	}
	return payload
}

// Sign returns the lowercase hex HMAC-SHA256 of the payload for kind.
// documentID is ignored for KindApproval.
func (s *Signer) Sign(kind Kind, actaID, participantID, documentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(Payload(kind, actaID, participantID, documentID)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it in constant time.
// It returns false for empty or malformed input and never panics.
func (s *Signer) Verify(kind Kind, actaID, participantID, documentID, supplied string) bool {
	if s == nil || len(s.secret) == 0 {
		return false
	}
	if !validID(actaID) || !validID(participantID) {
		return false
	}
	if kind == KindDocument && !validID(documentID) {
		return false
	}
	if kind != KindApproval && kind != KindDocument {
		return false
	}
	if supplied == "" {
		return false
	}

	expected := s.Sign(kind, actaID, participantID, documentID)
	return constantTimeEqual(expected, supplied)
}

// constantTimeEqual checks length first, then folds every byte into diff so the loop
// always runs to the end regardless of where the first mismatch is.
func constantTimeEqual(expected, supplied string) bool {
	if len(expected) != len(supplied) {
		return false
	}
	var diff byte
	for i := 0; i < len(expected); i++ {
		diff |= expected[i] ^ supplied[i]
	}
	return diff == 0
}

func validID(id string) bool {
	return id != "" && !strings.Contains(id, delimiter)
}

// ApprovalLink builds the public approval URL for one participant.
func (s *Signer) ApprovalLink(baseURL, actaID, participantID string) string {
	q := url.Values{}
	q.Set("acta", actaID)
	q.Set("integrante", participantID)
	q.Set("firma", s.Sign(KindApproval, actaID, participantID, ""))
	return strings.TrimRight(baseURL, "/") + "/public/actas/aprobar?" + q.Encode()
}

// DocumentLink builds the public download URL of one acta document for one participant.
func (s *Signer) DocumentLink(baseURL, actaID, participantID, documentID string) string {
	q := url.Values{}
	q.Set("acta", actaID)
	q.Set("integrante", participantID)
	q.Set("doc", documentID)
	q.Set("firma", s.Sign(KindDocument, actaID, participantID, documentID))
	return strings.TrimRight(baseURL, "/") + "/public/actas/documento?" + q.Encode()
}
