// Package auth verifies bearer credentials and scopes requests to an owner.
//
// A verified credential yields a Principal. Its OwnerID is SHA256(subject),
// so stored documents never carry the raw user identifier.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrEmptySubject is returned when an empty subject is provided.
var ErrEmptySubject = errors.New("subject cannot be empty")

// DeriveOwnerID derives a stable owner ID from a subject (user name or id)
// as the hex-encoded SHA256 of the subject.
//
//	ownerID, _ := auth.DeriveOwnerID("alice")
//	// ownerID = "2bd806c97f0e00af1a1fc3328fa763a9269723c8db8fac4f93af71db186d6e90"
func DeriveOwnerID(subject string) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	hash := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(hash[:]), nil
}
