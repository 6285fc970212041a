// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// Salt parameters.
const (
	SaltLen    = 16 // salt length in bytes for new digests
	MinSaltLen = 12 // shortest salt accepted when verifying

	// LegacySaltHexLen is the fixed length of the hex salt prefix in
	// concatenated digests.
	LegacySaltHexLen = 32
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code(CodeEmptyPassword).Wrapf(ErrInvalidPassword, "password cannot be empty")

// DigestFormat identifies how a stored credential digest is encoded.
type DigestFormat int

// Digest formats found in stored principal records.
const (
	// DigestUnknown is not a recognised encoding.
	DigestUnknown DigestFormat = iota

	// DigestDelimited is base64(salt) ":" base64(SHA-256(password ‖ salt)).
	// It is the only format produced by Hash.
	DigestDelimited

	// DigestConcatenated is hex(salt) ‖ hex(SHA-256(password ‖ hex(salt))),
	// with a fixed LegacySaltHexLen prefix and no delimiter.
	DigestConcatenated

	// DigestBcrypt is a "$2" prefixed bcrypt digest. It cannot be verified.
	DigestBcrypt
)

func (f DigestFormat) String() string {
	switch f {
	case DigestDelimited:
		return "delimited"
	case DigestConcatenated:
		return "concatenated"
	case DigestBcrypt:
		return "bcrypt"
	default:
		return "unknown"
	}
}

// Digest is a parsed credential digest.
type Digest struct {
	Format DigestFormat

	// Salt is the exact byte string appended to the password before hashing.
	Salt []byte

	// Sum is the expected SHA-256 output. Empty for DigestBcrypt.
	Sum []byte

	// BcryptCost is the cost of a well-formed bcrypt digest, 0 otherwise.
	BcryptCost int
}

// ParseDigest classifies and decodes a stored digest.
func ParseDigest(encoded string) (Digest, error) {
	switch {
	case strings.HasPrefix(encoded, "$2"):
		d := Digest{Format: DigestBcrypt}
		if cost, err := bcrypt.Cost([]byte(encoded)); err == nil {
			d.BcryptCost = cost
		}
		return d, nil

	case strings.Contains(encoded, ":"):
		saltPart, sumPart, _ := strings.Cut(encoded, ":")
		salt, err := base64.StdEncoding.DecodeString(saltPart)
		if err != nil {
			return Digest{}, invalidDigest(DigestDelimited, "salt is not base64", err)
		}
		sum, err := base64.StdEncoding.DecodeString(sumPart)
		if err != nil {
			return Digest{}, invalidDigest(DigestDelimited, "hash is not base64", err)
		}
		if len(salt) < MinSaltLen {
			return Digest{}, invalidDigest(DigestDelimited, "salt is too short", nil)
		}
		if len(sum) != sha256.Size {
			return Digest{}, invalidDigest(DigestDelimited, "hash has wrong length", nil)
		}
		return Digest{Format: DigestDelimited, Salt: salt, Sum: sum}, nil

	case len(encoded) == LegacySaltHexLen+2*sha256.Size:
		saltHex := encoded[:LegacySaltHexLen]
		if _, err := hex.DecodeString(saltHex); err != nil {
			return Digest{}, invalidDigest(DigestConcatenated, "salt is not hex", err)
		}
		sum, err := hex.DecodeString(encoded[LegacySaltHexLen:])
		if err != nil {
			return Digest{}, invalidDigest(DigestConcatenated, "hash is not hex", err)
		}
		return Digest{Format: DigestConcatenated, Salt: []byte(saltHex), Sum: sum}, nil

	default:
		return Digest{}, invalidDigest(DigestUnknown, "unrecognised digest encoding", nil)
	}
}

func invalidDigest(format DigestFormat, msg string, cause error) error {
	b := oops.Code(CodeInvalidDigest).With("format", format.String())
	if cause != nil {
		b = b.With("cause", cause.Error())
	}
	return b.Wrapf(ErrInvalidDigest, "%s", msg)
}

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a canonical digest of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or an error for
	// digests that cannot be checked.
	Verify(password, digest string) (bool, error)

	// NeedsUpgrade returns true if the digest is not in the canonical format.
	NeedsUpgrade(digest string) bool
}

// SaltedHasher implements PasswordHasher with salted SHA-256.
type SaltedHasher struct {
	salts io.Reader
}

// HasherOption configures a SaltedHasher.
type HasherOption func(*SaltedHasher)

// WithSaltSource replaces crypto/rand as the salt source.
func WithSaltSource(r io.Reader) HasherOption {
	return func(h *SaltedHasher) {
		h.salts = r
	}
}

// NewSaltedHasher creates a new SaltedHasher.
func NewSaltedHasher(opts ...HasherOption) *SaltedHasher {
	h := &SaltedHasher{salts: rand.Reader}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash returns base64(salt):base64(SHA-256(password ‖ salt)) with a fresh salt.
func (h *SaltedHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, SaltLen)
	if _, err := io.ReadFull(h.salts, salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	sum := saltedSum(password, salt)
	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(sum), nil
}

// Verify checks password against a delimited or concatenated digest.
// Bcrypt digests fail closed with ErrUnsupportedCredentialFormat.
func (h *SaltedHasher) Verify(password, encoded string) (bool, error) {
	d, err := ParseDigest(encoded)
	if err != nil {
		return false, err
	}

	if d.Format == DigestBcrypt {
		return false, oops.Code(CodeUnsupportedDigest).
			With("format", d.Format.String()).
			With("bcrypt_cost", d.BcryptCost).
			Wrapf(ErrUnsupportedCredentialFormat, "bcrypt digests cannot be verified")
	}

	computed := saltedSum(password, d.Salt)
	return subtle.ConstantTimeCompare(computed, d.Sum) == 1, nil
}

// NeedsUpgrade returns true for any digest that is not delimited.
func (h *SaltedHasher) NeedsUpgrade(encoded string) bool {
	d, err := ParseDigest(encoded)
	return err != nil || d.Format != DigestDelimited
}

func saltedSum(password string, salt []byte) []byte {
	sum := sha256.New()
	sum.Write([]byte(password))
	sum.Write(salt)
	return sum.Sum(nil)
}

// Compile-time interface check.
var _ PasswordHasher = (*SaltedHasher)(nil)
