package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedToken = errors.New("malformed download token")
	ErrBadSignature   = errors.New("invalid download token signature")
	ErrTokenExpired   = errors.New("download token expired")
	ErrTokenOwner     = errors.New("download token issued to another user")
)

// DownloadGrant is the payload carried by a signed download token.
type DownloadGrant struct {
	ResourceID string
	UserID     string
	ExpiresAt  time.Time
}

// SignedURLSigner issues and checks short-lived download tokens bound to one user and one resource.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token granting userID a download of resourceID until the TTL elapses.
func (s *SignedURLSigner) Issue(resourceID, userID string) (string, time.Time, error) {
	if resourceID == "" || userID == "" {
		return "", time.Time{}, fmt.Errorf("resourceID and userID required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	body := strings.Join([]string{
		encode(resourceID),
		encode(userID),
		strconv.FormatInt(expiresAt.Unix(), 10),
	}, ".")
	return body + "." + s.sign(body), expiresAt, nil
}

// Verify validates the token signature, expiry and owner.
func (s *SignedURLSigner) Verify(token, userID string) (*DownloadGrant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return nil, ErrMalformedToken
	}
	body := strings.Join(parts[:3], ".")
	if !hmac.Equal([]byte(s.sign(body)), []byte(parts[3])) {
		return nil, ErrBadSignature
	}

	resourceID, err := decode(parts[0])
	if err != nil {
		return nil, ErrMalformedToken
	}
	owner, err := decode(parts[1])
	if err != nil {
		return nil, ErrMalformedToken
	}
	exp, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, ErrMalformedToken
	}

	grant := &DownloadGrant{ResourceID: resourceID, UserID: owner, ExpiresAt: time.Unix(exp, 0)}
	if s.now().After(grant.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if owner != userID {
		return nil, ErrTokenOwner
	}
	return grant, nil
}

func (s *SignedURLSigner) sign(body string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func encode(v string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(v))
}

func decode(v string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
