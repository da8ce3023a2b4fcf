// Package auth parses exchange Authorization headers and models the resolved
// caller identity with its permissions and access rules.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/hydromet/datanode/internal/selector"
)

// ErrMalformedHeader is returned when the Authorization header is absent or
// does not match the exchange scheme.
var ErrMalformedHeader = errors.New("missing or malformed Authorization header")

// The header carries exactly `keyId="<username>",signature="<base64>"`.
var headerRE = regexp.MustCompile(`^\s*keyId="([^"]+)",signature="([^"]+)"\s*$`)

// Credentials are the parsed fields of an exchange Authorization header.
type Credentials struct {
	KeyID     string
	Signature []byte
}

// ParseHeader extracts the credentials from an Authorization header value.
func ParseHeader(header string) (Credentials, error) {
	if header == "" {
		return Credentials{}, ErrMalformedHeader
	}

	matches := headerRE.FindStringSubmatch(header)
	if matches == nil {
		return Credentials{}, ErrMalformedHeader
	}

	signature, err := base64.StdEncoding.DecodeString(matches[2])
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: signature is not valid base64: %v", ErrMalformedHeader, err)
	}

	return Credentials{KeyID: matches[1], Signature: signature}, nil
}

// FormatHeader renders the credentials in the exchange Authorization scheme.
// It is the inverse of ParseHeader.
func FormatHeader(keyID string, signature []byte) string {
	return fmt.Sprintf("keyId=%q,signature=%q", keyID, base64.StdEncoding.EncodeToString(signature))
}

// AccessRule scopes one measurement grant: which monitoring points and
// observed properties of an operator the identity may read. Selectors are
// kept opaque until query time, when the selector engine expands them.
type AccessRule struct {
	OperatorID       int
	PointType        selector.PointType
	PointSelector    string
	PropertySelector string
}

// Identity is a resolved caller: the database user, its signing public key
// if a non-revoked one exists, and its authorization state. It is built once
// per request and read-only thereafter.
type Identity struct {
	UserID   int
	Username string

	// PublicKeyPEM is empty when the user has no non-revoked key.
	PublicKeyPEM []byte

	// OperatorID is the operator the identity belongs to; zero when unbound.
	OperatorID int

	Permissions []string
	AccessRules []AccessRule
}

// HasPermission reports whether the identity carries the named permission.
func (id *Identity) HasPermission(name string) bool {
	return slices.Contains(id.Permissions, name)
}
