package blobstore

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
	// ErrSignatureInvalid is returned when a presigned URL fails verification.
	ErrSignatureInvalid = errors.New("invalid signature")

	// ErrSignatureExpired is returned when a presigned URL is past its expiry.
	ErrSignatureExpired = errors.New("signature expired")
)

// Signer mints and verifies time-limited retrieval URLs for blobs. The
// signature covers the key and the expiry timestamp, so neither can be
// tampered with after issue. This stands in for cloud presigned URLs: the
// API service itself serves the download after verifying the signature.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a Signer with the given shared secret and URL lifetime.
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// SignedURL returns a retrieval URL for key, valid for the signer's TTL,
// rooted at baseURL (the service's public base URL).
func (s *Signer) SignedURL(baseURL, key string) string {
	exp := s.now().Add(s.ttl).Unix()
	sig := s.sign(key, exp)

	q := url.Values{}
	q.Set("key", key)
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", sig)

	return fmt.Sprintf("%s/dub/files?%s", baseURL, q.Encode())
}

// Verify checks a key/exp/sig triple extracted from a retrieval request.
func (s *Signer) Verify(key, expStr, sig string) error {
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad expiry", ErrSignatureInvalid)
	}

	expected := s.sign(key, exp)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrSignatureInvalid
	}

	if s.now().Unix() > exp {
		return ErrSignatureExpired
	}

	return nil
}

func (s *Signer) sign(key string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%d", key, exp)
	return hex.EncodeToString(mac.Sum(nil))
}
