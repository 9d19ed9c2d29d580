package registry

import "fmt"

// TransportError is returned when a listing request fails or answers with a
// status other than 200. StatusCode is zero when no response was received.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

func (e TransportError) Unwrap() error { return e.Err }

// APIPayloadError is returned when the registry answers 200 with a body that
// is not a JSON object.
type APIPayloadError struct {
	URL string
	Err error
}

func (e APIPayloadError) Error() string {
	return fmt.Sprintf("unable to parse JSON returned by %s: %v", e.URL, e.Err)
}

func (e APIPayloadError) Unwrap() error { return e.Err }
