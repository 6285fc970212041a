// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// SigningAlgorithm is the only accepted token algorithm.
const SigningAlgorithm = "HS256"

// Header is the decoded first token segment.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
}

// Decoded is a token split into its parts. Nothing in it has been verified.
type Decoded struct {
	Header Header

	// Claims is the raw claims object.
	Claims json.RawMessage

	Signature []byte

	// SigningInput is "headerB64.claimsB64", the bytes the signature covers.
	SigningInput string
}

// Codec signs and verifies compact three-part tokens with a single shared
// HMAC-SHA256 secret. It is safe for concurrent use.
type Codec struct {
	secret []byte
}

// NewCodec creates a Codec. An empty secret is an error.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, oops.Code(CodeMissingSecret).Wrap(ErrMissingSecret)
	}
	return &Codec{secret: append([]byte(nil), secret...)}, nil
}

// Encode serializes claims under a {"alg":"HS256","typ":"JWT"} header and
// appends the base64url HMAC-SHA256 signature.
func (c *Codec) Encode(claims jwt.Claims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("AUTH_ENCODE_FAILED").Wrap(err)
	}
	return token, nil
}

// Decode splits a token and decodes its segments without verifying it.
// See DecodeToken.
func (c *Codec) Decode(token string) (*Decoded, error) {
	return DecodeToken(token)
}

// Verify decodes token, checks the header algorithm and the signature, and
// unmarshals the claims into dst. The verification function is always
// HMAC-SHA256 with the codec's secret, whatever the header declares.
func (c *Codec) Verify(token string, dst any) (*Decoded, error) {
	decoded, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}

	if decoded.Header.Alg != SigningAlgorithm {
		return nil, oops.Code(CodeUnsupportedAlgorithm).
			With("alg", decoded.Header.Alg).
			Public(MsgInvalidSignature).
			Wrapf(ErrInvalidSignature, "token algorithm %q is not accepted", decoded.Header.Alg)
	}

	if err := jwt.SigningMethodHS256.Verify(decoded.SigningInput, decoded.Signature, c.secret); err != nil {
		return nil, oops.Code(CodeInvalidSignature).
			Public(MsgInvalidSignature).
			Wrap(ErrInvalidSignature)
	}

	if dst != nil {
		if err := json.Unmarshal(decoded.Claims, dst); err != nil {
			return nil, invalidEncoding("claims", err)
		}
	}
	return decoded, nil
}

// DecodeToken splits token on "." and decodes each segment. It fails with
// ErrMalformedToken unless there are exactly three segments, and with
// ErrInvalidEncoding if the header or claims are not base64url JSON objects
// or the signature is not base64url. Decoding is strict: non-zero padding
// bits are rejected.
func DecodeToken(token string) (*Decoded, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, oops.Code(CodeMalformedToken).
			With("segments", len(parts)).
			Public(MsgInvalidToken).
			Wrap(ErrMalformedToken)
	}

	parser := jwt.NewParser(jwt.WithStrictDecoding())

	headerJSON, err := parser.DecodeSegment(parts[0])
	if err != nil {
		return nil, invalidEncoding("header", err)
	}
	var header Header
	if err := unmarshalObject(headerJSON, &header); err != nil {
		return nil, invalidEncoding("header", err)
	}

	claimsJSON, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, invalidEncoding("claims", err)
	}
	if err := unmarshalObject(claimsJSON, nil); err != nil {
		return nil, invalidEncoding("claims", err)
	}

	signature, err := parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, invalidEncoding("signature", err)
	}

	return &Decoded{
		Header:       header,
		Claims:       json.RawMessage(claimsJSON),
		Signature:    signature,
		SigningInput: parts[0] + "." + parts[1],
	}, nil
}

// unmarshalObject requires data to be a JSON object and optionally decodes it into dst.
func unmarshalObject(data []byte, dst any) error {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return err //nolint:wrapcheck // wrapped by invalidEncoding
	}
	if object == nil {
		return oops.Errorf("segment is not a JSON object")
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(data, dst) //nolint:wrapcheck // wrapped by invalidEncoding
}

func invalidEncoding(segment string, cause error) error {
	return oops.Code(CodeInvalidEncoding).
		With("segment", segment).
		With("cause", cause.Error()).
		Public(MsgInvalidToken).
		Wrap(ErrInvalidEncoding)
}
