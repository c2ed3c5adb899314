// Package qrtoken signs and verifies the tamper-evident ticket tokens that
// are printed as QR codes. A token is the JSON document
//
//	{"p": <payload>, "sig": "<hex HMAC-SHA256 of payload>"}
//
// where payload is the canonical encoding produced by Canonical. Verify
// refuses any payload whose bytes differ from that encoding, so reordered
// keys, extra whitespace or unknown fields all fail even when the signature
// was computed over them.
package qrtoken

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Payload is the signed content of a ticket token.
type Payload struct {
	TicketID uint64 `json:"ticket_id"`
	EventID  uint64 `json:"event_id"`
	SeatID   uint64 `json:"seat_id"`
	IssuedAt string `json:"issued_at"`
	Nonce    string `json:"nonce"`
}

// Signed is the token document as it travels inside the QR code.
type Signed struct {
	Payload   json.RawMessage `json:"p"`
	Signature string          `json:"sig"`
}

var (
	// ErrEmpty is returned by Parse for blank input.
	ErrEmpty = errors.New("qrtoken: empty token")
	// ErrMalformed is returned by Parse when the text is not a JSON token.
	ErrMalformed = errors.New("qrtoken: malformed token")
)

// Signer holds the HMAC secret. The zero value is unusable; build one with
// NewSigner.
type Signer struct {
	secret []byte
}

// NewSigner copies secret and returns a Signer. An empty secret is refused.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("qrtoken: empty secret")
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Signer{secret: s}, nil
}

// Canonical returns the byte sequence that is signed for p: compact JSON
// with keys in declaration order.
func Canonical(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

// Sign produces a token for p.
func (s *Signer) Sign(p Payload) (Signed, error) {
	raw, err := Canonical(p)
	if err != nil {
		return Signed{}, fmt.Errorf("encode payload: %w", err)
	}
	return Signed{Payload: raw, Signature: s.mac(raw)}, nil
}

// Verify reports whether t carries a payload signed by this Signer. It
// never returns an error; every failure mode is simply false.
func (s *Signer) Verify(t Signed) bool {
	if len(t.Payload) == 0 || t.Signature == "" {
		return false
	}
	p, err := decodePayload(t.Payload)
	if err != nil || p.TicketID == 0 {
		return false
	}
	canon, err := Canonical(p)
	if err != nil || !bytes.Equal(canon, t.Payload) {
		return false
	}
	// Compare the hex text itself so a case flip in the signature fails.
	return hmac.Equal([]byte(s.mac(canon)), []byte(t.Signature))
}

// Decode returns the payload of t without checking the signature. Callers
// must Verify first.
func Decode(t Signed) (Payload, error) {
	return decodePayload(t.Payload)
}

// Parse decodes scanned text into a token.
func Parse(raw string) (Signed, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Signed{}, ErrEmpty
	}
	var t Signed
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Signed{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return t, nil
}

// Encode renders t as the text stored in tickets.qr_payload and embedded in
// the QR image.
func Encode(t Signed) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Signer) mac(b []byte) string {
	m := hmac.New(sha256.New, s.secret)
	m.Write(b)
	return hex.EncodeToString(m.Sum(nil))
}

func decodePayload(raw []byte) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Payload{}, err
	}
	if dec.More() {
		return Payload{}, errors.New("trailing data after payload")
	}
	return p, nil
}
