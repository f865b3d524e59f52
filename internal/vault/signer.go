package vault

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	// ErrExpired is returned by Verify for a URL past its expiry.
	ErrExpired = errors.New("signed url expired")
	// ErrBadSignature is returned by Verify for a missing or forged signature.
	ErrBadSignature = errors.New("invalid url signature")
)

// URLSigner issues and checks time-limited URLs. The signature covers the
// path and the expiry, so a URL cannot be reused for another file or
// extended.
type URLSigner struct {
	key []byte
	now func() time.Time
}

// NewURLSigner returns a signer using key as the HMAC secret.
func NewURLSigner(key []byte) (*URLSigner, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("signing key must be at least 16 bytes, got %d", len(key))
	}
	return &URLSigner{key: key, now: time.Now}, nil
}

// Sign appends expires and sig query parameters to rawURL.
func (s *URLSigner) Sign(rawURL string, ttl time.Duration) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	expires := s.now().Add(ttl).Unix()

	q := u.Query()
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.mac(u.Path, expires))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify checks a URL produced by Sign.
func (s *URLSigner) Verify(u *url.URL) error {
	q := u.Query()
	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	want := s.mac(u.Path, expires)
	if !hmac.Equal([]byte(want), []byte(q.Get("sig"))) {
		return ErrBadSignature
	}
	if s.now().Unix() > expires {
		return ErrExpired
	}
	return nil
}

func (s *URLSigner) mac(path string, expires int64) string {
	m := hmac.New(sha256.New, s.key)
	fmt.Fprintf(m, "%s\n%d", path, expires)
	return hex.EncodeToString(m.Sum(nil))
}
