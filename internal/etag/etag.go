// Package etag computes content validators for conditional GET requests.
package etag

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"
)

// size is the number of hash bytes kept in the validator.
const size = 16

// Compute returns a quoted strong validator over payload. The bytes are hashed
// exactly as given, so the same rows in a different order produce a
// different validator.
func Compute(payload []byte) string {
	sum := blake3.Sum256(payload)
	return `"` + hex.EncodeToString(sum[:size]) + `"`
}

// Encode marshals v and returns the body together with its validator.
func Encode(v any) ([]byte, string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	return body, Compute(body), nil
}

// NotModified reports whether the client's validator matches the current one.
// Comparison is exact; a missing validator always means "send the payload".
func NotModified(ifNoneMatch, current string) bool {
	return ifNoneMatch != "" && ifNoneMatch == current
}
