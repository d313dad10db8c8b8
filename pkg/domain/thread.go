package domain

import (
	"strings"

	"github.com/google/uuid"
)

// ThreadNamespace is the UUID namespace thread IDs are derived in.
var ThreadNamespace = uuid.MustParse("6f1c7d2a-4b9e-5c3f-8a21-0d4e6b7f9a10")

// NormalizeUsername lower-cases a username and collapses its whitespace.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.Join(strings.Fields(username), " "))
}

// ThreadID derives the thread identifier for a username in ThreadNamespace.
func ThreadID(username string) (string, error) {
	return ThreadIDIn(ThreadNamespace, username)
}

// ThreadIDIn derives a deterministic name-based (version 5) UUID for the normalized username.
// Equal usernames after normalization always map to the same thread.
func ThreadIDIn(namespace uuid.UUID, username string) (string, error) {
	name := NormalizeUsername(username)
	if name == "" {
		return "", ErrEmptyUsername
	}
	return uuid.NewSHA1(namespace, []byte(name)).String(), nil
}
