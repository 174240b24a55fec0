package middleware

import "github.com/google/uuid"

// newLogID generates the UUID primary key for a request-log entry.
func newLogID() string {
	return uuid.NewString()
}
