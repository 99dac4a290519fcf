// Package selection encodes and decodes the state carried through an
// interactive format choice: the source URL and the chosen format
// identifier.
package selection

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter separates the URL from the format identifier inside a token.
// '|' must be percent-encoded in well-formed URLs, and decoding splits on
// the LAST occurrence, so a raw '|' inside the URL still round-trips as
// long as format identifiers never contain one — which Encode enforces.
const Delimiter = "|"

// ErrMalformedSelection indicates a callback payload that does not decode
// into a URL and a format identifier.
var ErrMalformedSelection = errors.New("malformed selection")

// Encode builds the token for (url, formatID).
func Encode(url, formatID string) ([]byte, error) {
	if url == "" || formatID == "" {
		return nil, fmt.Errorf("url and format id are required")
	}
	if strings.Contains(formatID, Delimiter) {
		return nil, fmt.Errorf("format id %q contains the token delimiter", formatID)
	}
	return []byte(url + Delimiter + formatID), nil
}

// Decode reverses Encode. It fails with ErrMalformedSelection unless the
// payload splits into exactly two non-empty fields.
func Decode(payload []byte) (url, formatID string, err error) {
	s := string(payload)
	i := strings.LastIndex(s, Delimiter)
	if i < 0 {
		return "", "", fmt.Errorf("%w: no delimiter", ErrMalformedSelection)
	}
	url, formatID = s[:i], s[i+len(Delimiter):]
	if url == "" || formatID == "" {
		return "", "", fmt.Errorf("%w: empty field", ErrMalformedSelection)
	}
	return url, formatID, nil
}
