package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// Request headers Slack signs every event delivery with.
const (
	HeaderSignature = "X-Slack-Signature"
	HeaderTimestamp = "X-Slack-Request-Timestamp"
)

const (
	signatureVersion = "v0"

	// MaxTimestampSkew bounds how old (or how far in the future) a signed
	// request may be before it is treated as a replay.
	MaxTimestampSkew = 300 * time.Second
)

var (
	// ErrMissingSignature is returned when either signing header is empty.
	ErrMissingSignature = errors.New("signature headers are required")
	// ErrInvalidTimestamp is returned when the timestamp is not a unix time.
	ErrInvalidTimestamp = errors.New("invalid signature timestamp")
	// ErrTimestampExpired is returned when the timestamp is outside MaxTimestampSkew.
	ErrTimestampExpired = errors.New("signature timestamp outside allowed skew")
	// ErrInvalidSignature is returned when the computed signature does not match.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Verifier checks Slack request signatures against a shared signing secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a Verifier for the given signing secret.
func NewVerifier(signingSecret string) *Verifier {
	return &Verifier{
		secret: []byte(signingSecret),
		now:    time.Now,
	}
}

// WithClock returns a copy of the verifier that reads the current time from now.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	return &Verifier{secret: v.secret, now: now}
}

// Valid reports whether signature is a fresh, authentic signature of body.
func (v *Verifier) Valid(body []byte, signature, timestamp string) bool {
	return v.Verify(body, signature, timestamp) == nil
}

// Verify returns nil when signature authenticates body at timestamp, or
// one of the package's sentinel errors describing why it does not.
func (v *Verifier) Verify(body []byte, signature, timestamp string) error {
	if signature == "" || timestamp == "" {
		return ErrMissingSignature
	}
	if len(v.secret) == 0 {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}

	// Whole seconds, compared without subtraction so extreme values cannot overflow.
	now := v.now().Unix()
	window := int64(MaxTimestampSkew / time.Second)
	if ts < now-window || ts > now+window {
		return ErrTimestampExpired
	}

	expected := Sign(v.secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}

	return nil
}

// Sign computes the v0 signature of body at timestamp.
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
