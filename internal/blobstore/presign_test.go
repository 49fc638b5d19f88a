package blobstore

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signedParams mints a URL and hands back its query parameters.
func signedParams(t *testing.T, s *Signer, key string) url.Values {
	t.Helper()

	u, err := url.Parse(s.SignedURL("http://localhost:8080", key))
	require.NoError(t, err)
	return u.Query()
}

func TestSigner_SignAndVerify(t *testing.T) {
	signer := NewSigner("secret", 15*time.Minute)

	q := signedParams(t, signer, "user/1/take.wav")
	assert.Equal(t, "user/1/take.wav", q.Get("key"))

	err := signer.Verify(q.Get("key"), q.Get("exp"), q.Get("sig"))
	require.NoError(t, err)
}

func TestSigner_Verify_TamperedKey(t *testing.T) {
	signer := NewSigner("secret", 15*time.Minute)

	q := signedParams(t, signer, "user/1/take.wav")

	err := signer.Verify("user/2/other.wav", q.Get("exp"), q.Get("sig"))
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestSigner_Verify_TamperedExpiry(t *testing.T) {
	signer := NewSigner("secret", time.Minute)

	q := signedParams(t, signer, "k")

	// Pushing the expiry forward invalidates the signature.
	err := signer.Verify(q.Get("key"), "9999999999", q.Get("sig"))
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestSigner_Verify_Expired(t *testing.T) {
	signer := NewSigner("secret", time.Minute)
	signer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	q := signedParams(t, signer, "k")

	signer.now = time.Now
	err := signer.Verify(q.Get("key"), q.Get("exp"), q.Get("sig"))
	assert.ErrorIs(t, err, ErrSignatureExpired)
}

func TestSigner_Verify_WrongSecret(t *testing.T) {
	minter := NewSigner("secret-a", time.Minute)
	verifier := NewSigner("secret-b", time.Minute)

	q := signedParams(t, minter, "k")

	err := verifier.Verify(q.Get("key"), q.Get("exp"), q.Get("sig"))
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestSigner_Verify_MalformedExpiry(t *testing.T) {
	signer := NewSigner("secret", time.Minute)
	err := signer.Verify("k", "not-a-number", "deadbeef")
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}
