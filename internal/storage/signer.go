package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zmang24/si-opportunity-manager/internal/domain"
)

// ErrInvalidSignature rejects tampered or expired blob links
var ErrInvalidSignature = fmt.Errorf("%w: invalid or expired blob link", domain.ErrPermissionDenied)

// Signer issues and verifies expiring links of the form
// <base>/blobs/<key>?exp=<unix>&sig=<hex hmac-sha256(key|exp)>.
type Signer struct {
	secret  []byte
	baseURL string
}

// NewSigner creates a Signer. baseURL is the externally visible API prefix.
func NewSigner(secret, baseURL string) (*Signer, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("blob url signing key must be at least 16 bytes")
	}
	return &Signer{secret: []byte(secret), baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *Signer) mac(key string, exp int64) string {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte(key))
	m.Write([]byte{'|'})
	m.Write([]byte(strconv.FormatInt(exp, 10)))
	return hex.EncodeToString(m.Sum(nil))
}

// SignedURL returns the link for key valid until expires
func (s *Signer) SignedURL(key string, expires time.Time) string {
	exp := expires.Unix()
	return fmt.Sprintf("%s/blobs/%s?exp=%d&sig=%s", s.baseURL, key, exp, s.mac(key, exp))
}

// Verify checks a link's signature and expiry against now
func (s *Signer) Verify(key, exp, sig string, now time.Time) error {
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	expected := s.mac(key, expUnix)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
		return ErrInvalidSignature
	}
	if now.Unix() > expUnix {
		return ErrInvalidSignature
	}
	return nil
}
