package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jdavila/drive-to-crm/internal/retry"
)

const defaultBaseURL = "https://www.googleapis.com/drive/v3"

// Client provides access to the Google Drive v3 API.
type Client interface {
	// ListImagesPage returns one page of image files in a folder. Pass an
	// empty pageToken for the first page; a returned FileList with an empty
	// NextPageToken is the last page.
	ListImagesPage(ctx context.Context, folderID, pageToken string) (*FileList, error)
	// Download fetches a file's content.
	Download(ctx context.Context, fileID string) ([]byte, error)
	// FindOrCreateSubfolder returns the ID of a named subfolder, creating
	// it when absent.
	FindOrCreateSubfolder(ctx context.Context, parentID, name string) (string, error)
	// CheckAccess reports whether the folder is readable with the current
	// credentials. A permission denial is a false result, not an error.
	CheckAccess(ctx context.Context, folderID string) (bool, error)
}

type client struct {
	httpClient *http.Client
	auth       Authenticator
	baseURL    string
	pageSize   int
	policy     retry.Policy
}

// Option configures a Client.
type Option func(*client)

// WithBaseURL overrides the Drive API endpoint, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithPageSize sets the listing page size.
func WithPageSize(size int) Option {
	return func(c *client) {
		if size > 0 {
			c.pageSize = size
		}
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

// NewClient creates a Drive client.
func NewClient(auth Authenticator, opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		auth:       auth,
		baseURL:    defaultBaseURL,
		pageSize:   1000,
		policy:     retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) ListImagesPage(ctx context.Context, folderID, pageToken string) (*FileList, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType contains 'image' and trashed = false", folderID)

	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "nextPageToken, files(id, name)")
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var list FileList
	err := c.policy.Do(ctx, func() error {
		body, err := c.get(ctx, "/files?"+params.Encode())
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &list)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}
	return &list, nil
}

func (c *client) Download(ctx context.Context, fileID string) ([]byte, error) {
	var content []byte
	err := c.policy.Do(ctx, func() error {
		body, err := c.get(ctx, "/files/"+url.PathEscape(fileID)+"?alt=media")
		if err != nil {
			return err
		}
		content = body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	return content, nil
}

func (c *client) FindOrCreateSubfolder(ctx context.Context, parentID, name string) (string, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType = 'application/vnd.google-apps.folder' and name = '%s' and trashed = false",
		parentID, strings.ReplaceAll(name, "'", `\'`))

	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "files(id, name)")

	var folderID string
	err := c.policy.Do(ctx, func() error {
		body, err := c.get(ctx, "/files?"+params.Encode())
		if err != nil {
			return err
		}
		var list FileList
		if err := json.Unmarshal(body, &list); err != nil {
			return err
		}
		if len(list.Files) > 0 {
			folderID = list.Files[0].ID
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to look up subfolder %s: %w", name, err)
	}
	if folderID != "" {
		return folderID, nil
	}

	payload, err := json.Marshal(map[string]any{
		"name":     name,
		"mimeType": "application/vnd.google-apps.folder",
		"parents":  []string{parentID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode folder metadata: %w", err)
	}

	err = c.policy.Do(ctx, func() error {
		body, err := c.do(ctx, http.MethodPost, "/files?fields=id", "application/json", payload)
		if err != nil {
			return err
		}
		var created File
		if err := json.Unmarshal(body, &created); err != nil {
			return err
		}
		folderID = created.ID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create subfolder %s: %w", name, err)
	}
	return folderID, nil
}

func (c *client) CheckAccess(ctx context.Context, folderID string) (bool, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("'%s' in parents", folderID))
	params.Set("fields", "files(id)")
	params.Set("pageSize", "1")

	err := c.policy.Do(ctx, func() error {
		_, err := c.get(ctx, "/files?"+params.Encode())
		return err
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) &&
			(apiErr.StatusCode == http.StatusForbidden || apiErr.StatusCode == http.StatusNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check access to folder %s: %w", folderID, err)
	}
	return true, nil
}

func (c *client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, "", nil)
}

func (c *client) do(ctx context.Context, method, path, contentType string, payload []byte) ([]byte, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
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
