// Package keys derives object keys and access tokens for published pages.
//
// An object key is a 128-bit random identifier encoded as 22 characters of
// unpadded base64url, optionally followed by "-" and a sanitized form of the
// source file's name. The random prefix carries all of the key's entropy;
// the stem exists so humans can tell keys apart in listings and URLs.
//
// An access token is a 256-bit random secret encoded as 43 characters of
// unpadded base64url. Tokens are never derived from file contents or keys.
package keys

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// RandomLen is the encoded length of a key's random prefix (16 bytes).
	RandomLen = 22
	// TokenLen is the encoded length of an access token (32 bytes).
	TokenLen = 43
	// MaxStemLen bounds the sanitized filename stem appended to a key.
	MaxStemLen = 40
	// DatastoreIDLen is the length of a page's datastore identifier.
	DatastoreIDLen = 20
)

// ErrRandomness reports that the system randomness source failed. Callers
// must treat this as fatal for the operation; keys and tokens are never
// generated from a degraded source.
var ErrRandomness = errors.New("randomness source unavailable")

// Pattern matches well-formed object keys: a 22-character base64url random
// prefix, optionally followed by "-" and a sanitized stem.
var Pattern = regexp.MustCompile(`^[A-Za-z0-9_-]{22}(?:-[a-z0-9_-]{1,40})?$`)

var stemInvalid = regexp.MustCompile(`[^a-z0-9_-]+`)

// DeriveKey builds the object key for a local file. The key embeds fresh
// randomness on every call, so deriving twice from the same path yields two
// distinct keys. The file is identified by name only; its contents are not
// read.
func DeriveKey(localPath string) (string, error) {
	random, err := randomString(16)
	if err != nil {
		return "", fmt.Errorf("derive key for %s: %w", localPath, err)
	}
	stem := SanitizeStem(filepath.Base(localPath))
	if stem == "" {
		return random, nil
	}
	return random + "-" + stem, nil
}

// NewToken returns a fresh access token. Tokens are independent of each
// other and of any object key.
func NewToken() (string, error) {
	token, err := randomString(32)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// NewDatastoreID returns the identifier wired into a published page's
// datastore script. IDs are hex so they survive embedding in JavaScript
// string literals unescaped.
func NewDatastoreID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return hex[:DatastoreIDLen]
}

// SanitizeStem reduces a file name to the suffix appended to object keys.
// The extension is dropped, the remainder lowercased, runs of characters
// outside [a-z0-9_-] collapse to a single "-", and the result is trimmed
// and capped at MaxStemLen. An empty result means the key should be the
// random prefix alone.
func SanitizeStem(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = strings.ToLower(stem)
	stem = stemInvalid.ReplaceAllString(stem, "-")
	stem = strings.Trim(stem, "-")
	if len(stem) > MaxStemLen {
		stem = strings.Trim(stem[:MaxStemLen], "-")
	}
	return stem
}

// RandomPart returns the random prefix of a well-formed key.
func RandomPart(key string) string {
	if len(key) < RandomLen {
		return key
	}
	return key[:RandomLen]
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomness, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
