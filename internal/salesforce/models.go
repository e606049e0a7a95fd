package salesforce

import (
	"fmt"
	"time"
)

// QueryResult is one page of a SOQL query response.
type QueryResult struct {
	TotalSize      int              `json:"totalSize"`
	Done           bool             `json:"done"`
	NextRecordsURL string           `json:"nextRecordsUrl"`
	Records        []map[string]any `json:"records"`
}

// UpdateRecord is one record in a composite sObjects update.
type UpdateRecord struct {
	ID     string
	Fields map[string]any
}

// UpdateResult is the per-record outcome of a composite sObjects update.
type UpdateResult struct {
	ID      string
	Success bool
	Errors  []string
}

// APIError represents a Salesforce API error response.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
	Retry      time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("salesforce API error %d: %s", e.StatusCode, e.Status)
}

// HTTPStatus returns the HTTP status code for retry classification.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// RetryAfter returns the server-suggested wait before retrying.
func (e *APIError) RetryAfter() time.Duration {
	return e.Retry
}

// apiErrorEntry is one element of Salesforce's JSON error array.
type apiErrorEntry struct {
	Message   string   `json:"message"`
	ErrorCode string   `json:"errorCode"`
	Fields    []string `json:"fields"`
}
