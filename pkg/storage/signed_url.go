package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedURLSigner mints and checks download tokens for archive snapshots.
// A token binds an archive ID to its file path and an expiry, so handing the
// token out is enough to authorize exactly one file for a bounded time.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner builds a signer. A non-positive ttl falls back to 24h.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

// Generate signs archiveID and relPath into a dot-separated token and returns
// it with its expiry.
func (s *SignedURLSigner) Generate(archiveID, relPath string) (string, time.Time, error) {
	if archiveID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("archive id and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	token := strings.Join([]string{archiveID, ts, encodedPath, s.sign(archiveID, ts, encodedPath)}, ".")
	return token, expiresAt, nil
}

// Parse checks the signature and expiry and returns the embedded archive ID
// and path. allowExpired skips the expiry check; sweep routines use it to map
// stale tokens back to files.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (archiveID, relPath string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("malformed token")
	}
	archiveID, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(archiveID, ts, encodedPath)), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode token path: %w", err)
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid token timestamp")
	}
	expiresAt = time.Unix(expUnix, 0)
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return archiveID, string(rawPath), expiresAt, nil
}

func (s *SignedURLSigner) sign(archiveID, ts, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s", archiveID, ts, encodedPath)
	return hex.EncodeToString(mac.Sum(nil))
}
