package facebook

import (
	"fmt"
	"strings"
)

// GraphError is a non-2xx answer from the Graph API.
type GraphError struct {
	StatusCode int
	Message    string
	Type       string
	Code       int
	Subcode    int
	TraceID    string
}

func (e GraphError) Error() string {
	parts := []string{fmt.Sprintf("graph api status %d", e.StatusCode)}
	if e.Type != "" || e.Code != 0 {
		parts = append(parts, fmt.Sprintf("%s code=%d subcode=%d", e.Type, e.Code, e.Subcode))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.TraceID != "" {
		parts = append(parts, "fbtrace_id="+e.TraceID)
	}
	return strings.Join(parts, ": ")
}

// PublishError is returned when both the photo post and the link post
// failed for a record. Err is the link post failure.
type PublishError struct {
	Name     string
	PhotoErr error
	Err      error
}

func (e PublishError) Error() string {
	return fmt.Sprintf("unable to publish %s: photo post: %v; link post: %v", e.Name, e.PhotoErr, e.Err)
}

func (e PublishError) Unwrap() error { return e.Err }
