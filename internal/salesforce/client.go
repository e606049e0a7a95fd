package salesforce

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jdavila/drive-to-crm/internal/retry"
)

// Client provides access to the Salesforce REST API.
type Client interface {
	// Query runs a SOQL query and returns every record across all pages.
	Query(ctx context.Context, soql string) ([]map[string]any, error)
	// GetRecord fetches selected fields of a single record.
	GetRecord(ctx context.Context, object, id string, fields []string) (map[string]any, error)
	// FindContentVersion looks up the newest ContentVersion attached to a
	// record under the given file name. found is false when none exists.
	FindContentVersion(ctx context.Context, recordID, fileName string) (cv ContentVersion, found bool, err error)
	// CreateContentVersion uploads file content as a new attachment on the
	// record and returns the resulting version and document IDs.
	CreateContentVersion(ctx context.Context, recordID, fileName string, content []byte) (ContentVersion, error)
	// BulkUpdate applies field updates to records of one object type in a
	// single composite request. Individual records may fail without
	// failing the batch.
	BulkUpdate(ctx context.Context, object string, records []UpdateRecord) ([]UpdateResult, error)
}

// ContentVersion identifies an uploaded file version and its document.
type ContentVersion struct {
	VersionID  string
	DocumentID string
}

type client struct {
	httpClient *http.Client
	auth       Authenticator
	apiVersion string
	policy     retry.Policy
}

// Option configures a Client.
type Option func(*client)

// WithAPIVersion overrides the REST API version, e.g. "v59.0".
func WithAPIVersion(version string) Option {
	return func(c *client) {
		c.apiVersion = version
	}
}

// WithRetryPolicy sets the retry policy applied to each API call.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *client) {
		c.policy = policy
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Salesforce client.
func NewClient(auth Authenticator, opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		auth:       auth,
		apiVersion: "v59.0",
		policy:     retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EscapeSOQL escapes a string literal for interpolation into a SOQL query.
func EscapeSOQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func (c *client) Query(ctx context.Context, soql string) ([]map[string]any, error) {
	path := fmt.Sprintf("/services/data/%s/query?q=%s", c.apiVersion, url.QueryEscape(soql))

	var records []map[string]any
	for {
		var page QueryResult
		err := c.policy.Do(ctx, func() error {
			body, err := c.do(ctx, http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			page = QueryResult{}
			return json.Unmarshal(body, &page)
		})
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}

		records = append(records, page.Records...)
		if page.Done || page.NextRecordsURL == "" {
			return records, nil
		}
		path = page.NextRecordsURL
	}
}

func (c *client) GetRecord(ctx context.Context, object, id string, fields []string) (map[string]any, error) {
	path := fmt.Sprintf("/services/data/%s/sobjects/%s/%s?fields=%s",
		c.apiVersion, object, url.PathEscape(id), url.QueryEscape(strings.Join(fields, ",")))

	var record map[string]any
	err := c.policy.Do(ctx, func() error {
		body, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		record = nil
		return json.Unmarshal(body, &record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s %s: %w", object, id, err)
	}
	return record, nil
}

func (c *client) FindContentVersion(ctx context.Context, recordID, fileName string) (ContentVersion, bool, error) {
	soql := fmt.Sprintf(
		"SELECT Id, ContentDocumentId FROM ContentVersion WHERE PathOnClient = '%s' AND FirstPublishLocationId = '%s' ORDER BY CreatedDate DESC LIMIT 1",
		EscapeSOQL(fileName), EscapeSOQL(recordID))

	records, err := c.Query(ctx, soql)
	if err != nil {
		return ContentVersion{}, false, fmt.Errorf("failed to look up content version for %s: %w", fileName, err)
	}
	if len(records) == 0 {
		return ContentVersion{}, false, nil
	}

	cv := ContentVersion{
		VersionID:  stringField(records[0], "Id"),
		DocumentID: stringField(records[0], "ContentDocumentId"),
	}
	if cv.VersionID == "" || cv.DocumentID == "" {
		return ContentVersion{}, false, fmt.Errorf("content version lookup for %s returned incomplete record", fileName)
	}
	return cv, true, nil
}

func (c *client) CreateContentVersion(ctx context.Context, recordID, fileName string, content []byte) (ContentVersion, error) {
	payload, err := json.Marshal(map[string]any{
		"Title":                  fileName,
		"PathOnClient":           fileName,
		"VersionData":            base64.StdEncoding.EncodeToString(content),
		"FirstPublishLocationId": recordID,
	})
	if err != nil {
		return ContentVersion{}, fmt.Errorf("failed to encode content version: %w", err)
	}

	path := fmt.Sprintf("/services/data/%s/sobjects/ContentVersion", c.apiVersion)
	var versionID string
	err = c.policy.Do(ctx, func() error {
		body, err := c.do(ctx, http.MethodPost, path, payload)
		if err != nil {
			return err
		}
		var created struct {
			ID      string `json:"id"`
			Success bool   `json:"success"`
		}
		if err := json.Unmarshal(body, &created); err != nil {
			return err
		}
		if !created.Success || created.ID == "" {
			return fmt.Errorf("content version create was not successful")
		}
		versionID = created.ID
		return nil
	})
	if err != nil {
		return ContentVersion{}, fmt.Errorf("failed to upload %s: %w", fileName, err)
	}

	// The create response carries only the version ID. The document ID
	// needed for the image URL requires a follow-up read.
	record, err := c.GetRecord(ctx, "ContentVersion", versionID, []string{"ContentDocumentId"})
	if err != nil {
		return ContentVersion{}, fmt.Errorf("failed to resolve document for uploaded %s: %w", fileName, err)
	}
	documentID := stringField(record, "ContentDocumentId")
	if documentID == "" {
		return ContentVersion{}, fmt.Errorf("uploaded %s has no content document", fileName)
	}

	return ContentVersion{VersionID: versionID, DocumentID: documentID}, nil
}

func (c *client) BulkUpdate(ctx context.Context, object string, records []UpdateRecord) ([]UpdateResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	payloadRecords := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		fields := map[string]any{
			"attributes": map[string]string{"type": object},
			"Id":         rec.ID,
		}
		for name, value := range rec.Fields {
			fields[name] = value
		}
		payloadRecords = append(payloadRecords, fields)
	}

	payload, err := json.Marshal(map[string]any{
		"allOrNone": false,
		"records":   payloadRecords,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode update batch: %w", err)
	}

	path := fmt.Sprintf("/services/data/%s/composite/sobjects", c.apiVersion)
	var responses []struct {
		ID      string          `json:"id"`
		Success bool            `json:"success"`
		Errors  []apiErrorEntry `json:"errors"`
	}
	err = c.policy.Do(ctx, func() error {
		body, err := c.do(ctx, http.MethodPatch, path, payload)
		if err != nil {
			return err
		}
		responses = nil
		return json.Unmarshal(body, &responses)
	})
	if err != nil {
		return nil, fmt.Errorf("bulk update of %d %s records failed: %w", len(records), object, err)
	}

	results := make([]UpdateResult, 0, len(responses))
	for i, resp := range responses {
		result := UpdateResult{ID: resp.ID, Success: resp.Success}
		if result.ID == "" && i < len(records) {
			result.ID = records[i].ID
		}
		for _, entry := range resp.Errors {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", entry.ErrorCode, entry.Message))
		}
		results = append(results, result)
	}
	return results, nil
}

func (c *client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	session, err := c.auth.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, session.InstanceURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.auth.Invalidate()
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
			Retry:      parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}

// parseRetryAfter handles the delay-seconds form of the Retry-After header.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// stringField reads a string value out of a decoded record, tolerating
// missing or null fields.
func stringField(record map[string]any, name string) string {
	value, ok := record[name].(string)
	if !ok {
		return ""
	}
	return value
}
