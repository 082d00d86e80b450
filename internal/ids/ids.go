// Package ids produces the opaque 128-bit identifiers used for accounts,
// reservations, transactions, payments and events. IDs are carried in
// canonical textual form (a UUID string) on the wire, per spec.
package ids

import "github.com/google/uuid"

// New returns a fresh opaque identifier in canonical textual form.
func New() string {
	return uuid.New().String()
}

// Valid reports whether s is a well-formed opaque identifier.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
