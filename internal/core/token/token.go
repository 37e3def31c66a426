// Package token encodes and decodes stateless resumption tokens
//
// A token is base64url (no padding) of a compact JSON payload. When a secret
// is configured a "." and the base64url HMAC-SHA256 of the payload segment
// follow. Tokens are never stored; expiry is checked against the clock at
// decode time.
package token

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"oaiserver/internal/core/oai"
	"oaiserver/internal/platform/config"
	perr "oaiserver/internal/platform/errors"
	ptime "oaiserver/internal/platform/time"
)

// Selector is the original request's listing arguments, kept verbatim so
// continuation pages re-apply exactly the same validation
type Selector struct {
	MetadataPrefix string `json:"m,omitempty"`
	Set            string `json:"s,omitempty"`
	From           string `json:"f,omitempty"`
	Until          string `json:"u,omitempty"`
}

// State is everything a continuation page needs
type State struct {
	Verb     oai.Verb `json:"v"`
	Selector Selector `json:"q"`
	// AfterID is the last delivered record id for record listings
	AfterID int64 `json:"a,omitempty"`
	// AfterSpec is the last delivered spec for ListSets
	AfterSpec string `json:"k,omitempty"`
	// Cursor counts items delivered before the next page
	Cursor int   `json:"c"`
	Total  int64 `json:"t"`
	Issued int64 `json:"i"`
}

// IssuedAt returns the issue time
func (s State) IssuedAt() time.Time { return time.Unix(s.Issued, 0).UTC() }

// Config tunes the codec
type Config struct {
	Expiry time.Duration
	Secret string
}

// ConfigFrom reads RESUMPTION_TOKEN_EXPIRE and TOKEN_SECRET under cfg's prefix
func ConfigFrom(cfg config.Conf) Config {
	return Config{
		Expiry: cfg.MayDuration("RESUMPTION_TOKEN_EXPIRE", time.Hour),
		Secret: cfg.MayString("TOKEN_SECRET", ""),
	}
}

// Codec turns State into tokens and back
type Codec struct {
	expiry time.Duration
	secret []byte
	clock  ptime.Clock
}

// New builds a Codec; a nil clock means the system clock
func New(cfg Config, clock ptime.Clock) *Codec {
	if clock == nil {
		clock = ptime.System
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = time.Hour
	}
	var secret []byte
	if cfg.Secret != "" {
		secret = []byte(cfg.Secret)
	}
	return &Codec{expiry: cfg.Expiry, secret: secret, clock: clock}
}

// Expiry returns the configured lifetime
func (c *Codec) Expiry() time.Duration { return c.expiry }

// ExpiresAt returns when a token issued with s stops decoding
func (c *Codec) ExpiresAt(s State) time.Time { return s.IssuedAt().Add(c.expiry) }

var enc = base64.RawURLEncoding

// Encode stamps the issue time when unset and returns the opaque token
func (c *Codec) Encode(s State) (string, error) {
	if s.Verb == "" {
		return "", perr.Internalf("token state has no verb")
	}
	if s.Issued == 0 {
		s.Issued = c.clock.Now().Unix()
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "encode token")
	}
	body := enc.EncodeToString(raw)
	if c.secret == nil {
		return body, nil
	}
	return body + "." + enc.EncodeToString(c.sign(body)), nil
}

// Decode verifies and expands tok; every failure is badResumptionToken
func (c *Codec) Decode(tok string) (State, error) {
	var s State
	if tok == "" {
		return s, bad("empty resumption token")
	}
	body, sig, signed := strings.Cut(tok, ".")
	if c.secret != nil {
		if !signed {
			return s, bad("unsigned resumption token")
		}
		got, err := enc.DecodeString(sig)
		if err != nil || !hmac.Equal(got, c.sign(body)) {
			return s, bad("resumption token signature mismatch")
		}
	} else if signed {
		return s, bad("malformed resumption token")
	}

	raw, err := enc.DecodeString(body)
	if err != nil {
		return s, bad("malformed resumption token")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return State{}, bad("malformed resumption token")
	}
	if _, ok := oai.ParseVerb(string(s.Verb)); !ok || s.Issued <= 0 || s.Cursor < 0 || s.AfterID < 0 {
		return State{}, bad("malformed resumption token")
	}
	if c.clock.Now().After(c.ExpiresAt(s)) {
		return State{}, bad("resumption token expired")
	}
	return s, nil
}

func (c *Codec) sign(body string) []byte {
	m := hmac.New(sha256.New, c.secret)
	m.Write([]byte(body))
	return m.Sum(nil)
}

func bad(msg string) error {
	return perr.WithField(perr.New(perr.ErrorCodeBadResumptionToken, msg), oai.ArgResumptionToken)
}
