package drive

import (
	"fmt"
	"time"
)

// File is one entry from a folder listing.
type File struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FileList is one page of a folder listing.
type FileList struct {
	NextPageToken string `json:"nextPageToken"`
	Files         []File `json:"files"`
}

// APIError represents a Drive API error response.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
	Retry      time.Duration // parsed from the Retry-After header, if any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("drive API error %d: %s", e.StatusCode, e.Status)
}

// HTTPStatus returns the HTTP status code for retry classification.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// RetryAfter returns the server-suggested wait before retrying.
func (e *APIError) RetryAfter() time.Duration {
	return e.Retry
}

// serviceAccountKey is the subset of a Google service account key file the
// client needs.
type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}
