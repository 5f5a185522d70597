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
	// ErrSignedURLInvalid marks malformed or tampered share tokens.
	ErrSignedURLInvalid = errors.New("invalid share token")
	// ErrSignedURLExpired marks share tokens past their expiry.
	ErrSignedURLExpired = errors.New("share token expired")
)

// SignedURLSigner creates and validates signed download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL reports the lifetime of generated tokens.
func (s *SignedURLSigner) TTL() time.Duration { return s.ttl }

// Generate returns a token binding the document id to its file name until expiry.
func (s *SignedURLSigner) Generate(documentID, fileName string) (string, time.Time, error) {
	if documentID == "" || fileName == "" {
		return "", time.Time{}, fmt.Errorf("documentID and fileName required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedName := base64.RawURLEncoding.EncodeToString([]byte(fileName))
	token := strings.Join([]string{documentID, ts, encodedName, s.sign(documentID, ts, encodedName)}, ".")
	return token, time.Unix(expiresAt.Unix(), 0), nil
}

// Parse validates a token and returns the embedded metadata.
func (s *SignedURLSigner) Parse(token string) (documentID, fileName string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrSignedURLInvalid
	}
	documentID, ts, encodedName, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(documentID, ts, encodedName)), []byte(signature)) {
		return "", "", time.Time{}, ErrSignedURLInvalid
	}
	rawName, err := base64.RawURLEncoding.DecodeString(encodedName)
	if err != nil {
		return "", "", time.Time{}, ErrSignedURLInvalid
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrSignedURLInvalid
	}
	expiresAt = time.Unix(expUnix, 0)
	if s.now().After(expiresAt) {
		return "", "", time.Time{}, ErrSignedURLExpired
	}
	return documentID, string(rawName), expiresAt, nil
}

func (s *SignedURLSigner) sign(documentID, ts, encodedName string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(documentID + "|" + ts + "|" + encodedName))
	return hex.EncodeToString(mac.Sum(nil))
}
