// ABOUTME: Run id generation using ULIDs so ids sort by creation time.
// ABOUTME: Submitted ids are checked against the same format before use.

package daemon

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// NewRunID returns a new ULID string using crypto/rand entropy.
func NewRunID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// validRunID reports whether id parses as a ULID.
func validRunID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}
