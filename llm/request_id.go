package llm

import "github.com/google/uuid"

// newRequestID generates a correlation id for a single Complete call.
func newRequestID() string {
	return uuid.New().String()
}
