// Package credential implements the Variant A JWT credential and the Variant B Transaction
// Certificate: parsing, signature verification, and the ordered validity checks spec.md §4.5
// defines. It never trusts a claim it hasn't independently verified against the session it's
// bound to.
package credential

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/doorkeeper/intercom/internal/errorcode"
)

// Claims is the Variant A credential payload, issued by the backend on /device/register and
// refreshed on /device/refresh (both out of scope here; this package only verifies what it's
// handed). It embeds jwt.RegisteredClaims so `jti`/`sub`/`aud`/`nbf`/`exp` round-trip through the
// standard claim names while DevicePubKey/GracePeriod/RevocationRef ride as custom claims.
type Claims struct {
	jwt.RegisteredClaims
	DevicePubKey  string `json:"device_pub_key"` // base64 standard encoding of the 65-byte uncompressed point
	GracePeriod   int64  `json:"grace_period"`   // seconds
	RevocationRef string `json:"revocation_ref"`
}

// Credential is a parsed, not-yet-verified Variant A credential.
type Credential struct {
	Claims Claims
	token  *jwt.Token
}

// RevocationChecker decides whether a revocation reference names a revoked credential. The
// peripheral's allowlist/cache (out of scope for this package) implements it.
type RevocationChecker interface {
	IsRevoked(revocationRef string) bool
}

// Issue signs a new Variant A credential with the authority's ES256 private key. Issuance lives
// outside the engine's scope per spec.md §1 (it's the backend's /device/register job) but a
// concrete helper keeps provisioning tooling (cmd/intercom-keygen) and tests from hand-assembling
// JWTs.
func Issue(authorityKey *ecdsa.PrivateKey, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	return token.SignedString(authorityKey)
}

// ParseCredential decodes tokenString and verifies its ES256 signature under authorityPub, without
// checking any time-, audience-, or binding-related claim — those are the ordered checks in
// Verify. This corresponds to spec §4.5 steps 1-2 (structural parse, signature).
func ParseCredential(tokenString string, authorityPub *ecdsa.PublicKey) (*Credential, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, errorcode.ErrSignatureInvalid
		}
		return authorityPub, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		if isSignatureError(err) {
			return nil, errorcode.ErrSignatureInvalid
		}
		return nil, errorcode.ErrInvalidCredential
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errorcode.ErrInvalidCredential
	}
	return &Credential{Claims: *claims, token: token}, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, jwt.ErrSignatureInvalid) || errors.Is(err, jwt.ErrTokenSignatureInvalid)
}

// VerifyOptions carries the session-specific context the ordered check chain needs (spec §4.5
// steps 3-8), separate from ParseCredential's purely cryptographic concerns.
type VerifyOptions struct {
	Now         time.Time
	DoorID      string
	DoorAliases []string
	SessionPubM []byte // the session's authenticated mobile public key, for credential binding
	Revocation  RevocationChecker
	// PermissionAllowed lets a caller bind a per-credential action-permission policy; nil permits
	// unconditionally, matching spec §4.5's "Permission/action check (unlock allowed)" as an
	// always-present but pluggable final gate.
	PermissionAllowed func(Claims) bool
}

// Verify runs the ordered, short-circuiting validity chain from spec §4.5 steps 3-8 against an
// already-parsed, already-signature-verified Credential.
func (c *Credential) Verify(opts VerifyOptions) error {
	checks := []func() error{
		func() error {
			if c.Claims.NotBefore != nil && opts.Now.Before(c.Claims.NotBefore.Time) {
				return errorcode.ErrCredNotYetValid
			}
			return nil
		},
		func() error {
			if c.Claims.ExpiresAt == nil {
				return errorcode.ErrInvalidCredential
			}
			deadline := c.Claims.ExpiresAt.Time.Add(time.Duration(c.Claims.GracePeriod) * time.Second)
			if opts.Now.After(deadline) {
				return errorcode.ErrCredExpired
			}
			return nil
		},
		func() error {
			if matchesDoor(c.Claims.Audience, opts.DoorID, opts.DoorAliases) {
				return nil
			}
			return errorcode.ErrWrongDoor
		},
		func() error {
			pub, err := base64.StdEncoding.DecodeString(c.Claims.DevicePubKey)
			if err != nil || !bytes.Equal(pub, opts.SessionPubM) {
				return errorcode.ErrAuthFailed
			}
			return nil
		},
		func() error {
			if opts.Revocation != nil && opts.Revocation.IsRevoked(c.Claims.RevocationRef) {
				return errorcode.ErrCredRevoked
			}
			return nil
		},
		func() error {
			if opts.PermissionAllowed != nil && !opts.PermissionAllowed(c.Claims) {
				return errorcode.ErrPermissionDenied
			}
			return nil
		},
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func matchesDoor(audience jwt.ClaimStrings, doorID string, aliases []string) bool {
	candidates := append([]string{doorID}, aliases...)
	for _, aud := range audience {
		for _, candidate := range candidates {
			if aud == candidate {
				return true
			}
		}
	}
	return false
}
