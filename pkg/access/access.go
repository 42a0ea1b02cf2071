// Package access implements the authorization rules for published pages.
//
// Every object is either public or token-guarded, fixed at upload time. The
// uploader persists a Policy in object metadata: the visibility plus, for
// guarded objects, the SHA-256 digest of the access token. Readers present
// the raw token; authorization compares digests in constant time, so neither
// a metadata read nor a timing probe can recover the secret.
package access

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// Visibility is the access mode assigned to an object at upload.
type Visibility string

const (
	// VisibilityPublic objects are readable by anyone with the URL.
	VisibilityPublic Visibility = "public"

	// VisibilityTokenGuarded objects require the access token minted at
	// upload. This is the default.
	VisibilityTokenGuarded Visibility = "token-guarded"
)

// String returns the string representation of the visibility.
func (v Visibility) String() string {
	return string(v)
}

// ParseVisibility validates a visibility value from a flag or config file.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(strings.ToLower(strings.TrimSpace(s))) {
	case VisibilityPublic:
		return VisibilityPublic, nil
	case VisibilityTokenGuarded:
		return VisibilityTokenGuarded, nil
	default:
		return "", fmt.Errorf("invalid visibility %q (valid: %s, %s)", s, VisibilityPublic, VisibilityTokenGuarded)
	}
}

// Decision is the outcome of an authorization check.
type Decision string

const (
	// DecisionAllow grants the read.
	DecisionAllow Decision = "allow"

	// DecisionDenyForbidden refuses the read without revealing whether the
	// presented token was missing, malformed, or merely wrong.
	DecisionDenyForbidden Decision = "deny-forbidden"

	// DecisionDenyNotFound refuses because no object exists under the key.
	DecisionDenyNotFound Decision = "deny-not-found"
)

// Allowed reports whether the decision grants the read.
func (d Decision) Allowed() bool {
	return d == DecisionAllow
}

// String returns the string representation of the decision.
func (d Decision) String() string {
	return string(d)
}

// Metadata keys under which a policy is persisted on the object. S3 stores
// user metadata case-insensitively, so lookups must tolerate any casing.
const (
	MetaVisibility  = "pagehost-visibility"
	MetaTokenDigest = "pagehost-token-sha256"
)

// Policy is the per-object access state.
//
// TokenDigest holds the hex-encoded SHA-256 of the access token for guarded
// objects and is empty for public ones. The raw token is never part of the
// policy.
type Policy struct {
	Visibility  Visibility
	TokenDigest string
}

// NewPolicy builds the policy persisted at upload. Public policies ignore
// the token; guarded policies require one.
func NewPolicy(v Visibility, token string) (Policy, error) {
	switch v {
	case VisibilityPublic:
		return Policy{Visibility: VisibilityPublic}, nil
	case VisibilityTokenGuarded:
		if token == "" {
			return Policy{}, fmt.Errorf("token-guarded policy requires a token")
		}
		return Policy{Visibility: VisibilityTokenGuarded, TokenDigest: DigestToken(token)}, nil
	default:
		return Policy{}, fmt.Errorf("invalid visibility %q", v)
	}
}

// Authorize decides whether a presented token may read the object. Public
// objects allow every read and ignore any token supplied. Guarded objects
// allow the read only when the token's digest matches the stored digest;
// the comparison runs in constant time regardless of where the candidate
// diverges.
func (p Policy) Authorize(presentedToken string) Decision {
	if p.Visibility == VisibilityPublic {
		return DecisionAllow
	}
	if p.TokenDigest == "" {
		// No digest on a guarded object means nothing can ever match.
		return DecisionDenyForbidden
	}
	candidate := DigestToken(presentedToken)
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(p.TokenDigest)) == 1 {
		return DecisionAllow
	}
	return DecisionDenyForbidden
}

// Metadata renders the policy as object metadata for upload.
func (p Policy) Metadata() map[string]string {
	meta := map[string]string{MetaVisibility: p.Visibility.String()}
	if p.TokenDigest != "" {
		meta[MetaTokenDigest] = p.TokenDigest
	}
	return meta
}

// PolicyFromMetadata reconstructs the policy stored on an object. Objects
// with absent or unrecognized visibility metadata are treated as
// token-guarded with no matching digest, which denies every read.
func PolicyFromMetadata(meta map[string]string) Policy {
	p := Policy{Visibility: VisibilityTokenGuarded}
	for k, v := range meta {
		switch strings.ToLower(k) {
		case MetaVisibility:
			if vis, err := ParseVisibility(v); err == nil {
				p.Visibility = vis
			}
		case MetaTokenDigest:
			p.TokenDigest = strings.ToLower(strings.TrimSpace(v))
		}
	}
	if p.Visibility == VisibilityPublic {
		p.TokenDigest = ""
	}
	return p
}

// DigestToken returns the hex-encoded SHA-256 digest of a token. Digests are
// what gets persisted and compared; raw tokens only ever travel in URLs.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
