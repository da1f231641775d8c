package jwtx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token cannot be structurally decoded.
var ErrInvalidToken = errors.New("jwtx: invalid token")

// segmentParser only decodes; it never verifies a signature.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// payload fields already mapped onto Claims
var knownClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {}, "jti": {},
	"email": {},
}

// Decode reads the claims out of a compact JWT without checking its
// signature. The token must have three dot-separated segments and the middle
// one must be base64url-encoded JSON object.
func Decode(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrInvalidToken, len(parts))
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload encoding: %v", ErrInvalidToken, err)
	}

	// Unmarshalling into a map first rejects arrays, scalars and null.
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object: %v", ErrInvalidToken, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: payload is null", ErrInvalidToken)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: claims: %v", ErrInvalidToken, err)
	}

	for k, v := range raw {
		if _, ok := knownClaims[k]; ok {
			continue
		}
		if claims.Extra == nil {
			claims.Extra = make(map[string]any)
		}
		claims.Extra[k] = v
	}

	return &claims, nil
}
