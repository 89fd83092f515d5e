package signer

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret      = "test-secret-do-not-use"
	testActa        = "0b6c3f0e-5a4e-4c51-9a53-0f3c2d8e9a11"
	testParticipant = "7d1f0c2a-1b2c-4d3e-8f90-a1b2c3d4e5f6"
	testDocument    = "c5e2a7b4-9d8e-4f10-8a2b-3c4d5e6f7a8b"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := New(testSecret)
	require.NoError(t, err)
	return s
}

func TestNew_RequiresSecret(t *testing.T) {
	for _, secret := range []string{"", "   "} {
		s, err := New(secret)
		assert.Nil(t, s)
		assert.ErrorIs(t, err, ErrMissingSecret)
	}
}

func TestPayload(t *testing.T) {
	assert.Equal(t, "acta:a1:integrante:p1", Payload(KindApproval, "a1", "p1", "ignored"))
	assert.Equal(t, "acta:a1:integrante:p1:doc:d1", Payload(KindDocument, "a1", "p1", "d1"))
}

func TestSign_Deterministic(t *testing.T) {
	s := newTestSigner(t)

	first := s.Sign(KindApproval, testActa, testParticipant, "")
	second := s.Sign(KindApproval, testActa, testParticipant, "")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.True(t, s.Verify(KindApproval, testActa, testParticipant, "", first))

	doc := s.Sign(KindDocument, testActa, testParticipant, testDocument)
	assert.True(t, s.Verify(KindDocument, testActa, testParticipant, testDocument, doc))
}

func TestSign_DependsOnSecret(t *testing.T) {
	a := newTestSigner(t)
	b, err := New("another-secret")
	require.NoError(t, err)

	sig := a.Sign(KindApproval, testActa, testParticipant, "")
	assert.NotEqual(t, sig, b.Sign(KindApproval, testActa, testParticipant, ""))
	assert.False(t, b.Verify(KindApproval, testActa, testParticipant, "", sig))
}

func TestVerify_DomainSeparation(t *testing.T) {
	s := newTestSigner(t)

	approval := s.Sign(KindApproval, testActa, testParticipant, "")
	document := s.Sign(KindDocument, testActa, testParticipant, testDocument)

	assert.False(t, s.Verify(KindDocument, testActa, testParticipant, testDocument, approval))
	assert.False(t, s.Verify(KindApproval, testActa, testParticipant, "", document))
}

func TestVerify_BoundToIdentities(t *testing.T) {
	s := newTestSigner(t)
	sig := s.Sign(KindApproval, testActa, testParticipant, "")

	assert.False(t, s.Verify(KindApproval, testActa, testDocument, "", sig))
	assert.False(t, s.Verify(KindApproval, testDocument, testParticipant, "", sig))

	doc := s.Sign(KindDocument, testActa, testParticipant, testDocument)
	assert.False(t, s.Verify(KindDocument, testActa, testParticipant, testActa, doc))
}

func TestVerify_TamperSensitivity(t *testing.T) {
	s := newTestSigner(t)
	sig := s.Sign(KindApproval, testActa, testParticipant, "")

	for i := 0; i < len(sig); i++ {
		flipped := []byte(sig)
		if flipped[i] == 'a' {
			flipped[i] = 'b'
		} else {
			flipped[i] = 'a'
		}
		assert.False(t, s.Verify(KindApproval, testActa, testParticipant, "", string(flipped)), "position %d", i)
	}
}

func TestVerify_MalformedInput(t *testing.T) {
	s := newTestSigner(t)
	sig := s.Sign(KindApproval, testActa, testParticipant, "")

	cases := map[string]struct {
		kind                  Kind
		acta, part, doc, sig string
	}{
		"empty signature":     {KindApproval, testActa, testParticipant, "", ""},
		"short signature":     {KindApproval, testActa, testParticipant, "", sig[:10]},
		"long signature":      {KindApproval, testActa, testParticipant, "", sig + "00"},
		"uppercase signature": {KindApproval, testActa, testParticipant, "", strings.ToUpper(sig)},
		"empty acta":          {KindApproval, "", testParticipant, "", sig},
		"empty participant":   {KindApproval, testActa, "", "", sig},
		"delimiter in id":     {KindApproval, testActa + ":x", testParticipant, "", sig},
		"document without id": {KindDocument, testActa, testParticipant, "", sig},
		"unknown kind":        {Kind(9), testActa, testParticipant, "", sig},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, s.Verify(tc.kind, tc.acta, tc.part, tc.doc, tc.sig))
		})
	}

	var nilSigner *Signer
	assert.False(t, nilSigner.Verify(KindApproval, testActa, testParticipant, "", sig))
}

func TestConstantTimeEqual_ScansWholeInput(t *testing.T) {
	base := strings.Repeat("a", 64)
	firstDiff := "b" + base[1:]
	lastDiff := base[:63] + "b"

	assert.True(t, constantTimeEqual(base, base))
	assert.False(t, constantTimeEqual(base, firstDiff))
	assert.False(t, constantTimeEqual(base, lastDiff))
	assert.False(t, constantTimeEqual(base, base[:63]))
}

func TestApprovalLink(t *testing.T) {
	s := newTestSigner(t)

	link := s.ApprovalLink("https://actas.example.co/", testActa, testParticipant)
	u, err := url.Parse(link)
	require.NoError(t, err)

	assert.Equal(t, "/public/actas/aprobar", u.Path)
	assert.Equal(t, testActa, u.Query().Get("acta"))
	assert.Equal(t, testParticipant, u.Query().Get("integrante"))
	assert.True(t, s.Verify(KindApproval, testActa, testParticipant, "", u.Query().Get("firma")))
}

func TestDocumentLink(t *testing.T) {
	s := newTestSigner(t)

	link := s.DocumentLink("https://actas.example.co", testActa, testParticipant, testDocument)
	u, err := url.Parse(link)
	require.NoError(t, err)

	assert.Equal(t, "/public/actas/documento", u.Path)
	assert.Equal(t, testDocument, u.Query().Get("doc"))
	assert.True(t, s.Verify(KindDocument, testActa, testParticipant, testDocument, u.Query().Get("firma")))
}
