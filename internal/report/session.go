package report

import uuid "github.com/satori/go.uuid"

// NewSession returns a random identifier for one profiling session.
func NewSession() string {
	return uuid.NewV4().String()
}

// ValidSession reports whether s is a session identifier.
func ValidSession(s string) bool {
	_, err := uuid.FromString(s)
	return err == nil
}
