// Package utils provides utility functions for the enrichment service.
//
// This package contains common utilities for ID generation and retry logic
// used throughout the application.
package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRequestID generates a unique request ID for tracing and correlation.
//
// Creates a request ID in the format: "req-{uuid}-{timestamp}" where the
// timestamp is the current Unix timestamp. Request IDs are assigned to
// enrichment requests that arrive without one.
func GenerateRequestID() string {
	return fmt.Sprintf("req-%s-%d", uuid.NewString(), time.Now().Unix())
}

// GenerateBatchID generates a unique batch ID for correlating the responses
// of one batch invocation in logs.
func GenerateBatchID() string {
	return fmt.Sprintf("batch-%s", uuid.NewString())
}
