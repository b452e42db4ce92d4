package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/checkfox/go_reachout/internal/models"
)

// BackendClient talks to the lead persistence backend
type BackendClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewBackendClient creates a new backend client
func NewBackendClient(baseURL, token string, timeout time.Duration) *BackendClient {
	return &BackendClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// envelope is the backend's response shape
type envelope struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Lead    *models.Lead   `json:"lead,omitempty"`
	Leads   []*models.Lead `json:"leads,omitempty"`
}

// GetLead fetches one lead
func (c *BackendClient) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/leads/"+url.PathEscape(id), nil, id)
	if err != nil {
		return nil, err
	}
	if env.Lead == nil {
		return nil, models.NewSyncError(http.StatusOK, "response carried no lead", false, nil)
	}
	return env.Lead, nil
}

// ListLeads fetches every lead with the given status; an empty status lists all
func (c *BackendClient) ListLeads(ctx context.Context, status models.LeadStatus) ([]*models.Lead, error) {
	path := "/api/leads"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	env, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	return env.Leads, nil
}

// UpdateLead sends a partial update and returns the stored lead with its new version.
// A stale version comes back as a non-retriable SyncError with status 409.
func (c *BackendClient) UpdateLead(ctx context.Context, id string, patch *models.LeadPatch) (*models.Lead, error) {
	env, err := c.do(ctx, http.MethodPut, "/api/leads/"+url.PathEscape(id), patch, id)
	if err != nil {
		return nil, err
	}
	return env.Lead, nil
}

// DeleteLead removes a lead on the backend
func (c *BackendClient) DeleteLead(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/leads/"+url.PathEscape(id), nil, id)
	return err
}

// do executes a request and decodes the envelope.
// Errors are always *models.SyncError with Retriable set appropriately.
func (c *BackendClient) do(ctx context.Context, method, path string, body interface{}, leadID string) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, models.NewSyncError(0, "failed to marshal payload", false, err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, models.NewSyncError(0, "failed to create request", false, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Shared-Secret", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are retriable
		return nil, models.NewSyncError(0, "network error", true, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewSyncError(resp.StatusCode, "failed to read response body", true, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(bodyBytes, &env)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if len(bodyBytes) > 0 && decodeErr != nil {
			return nil, models.NewSyncError(resp.StatusCode, "malformed response body", false, decodeErr)
		}
		if len(bodyBytes) > 0 && !env.Success {
			return nil, models.NewSyncError(resp.StatusCode, errorText(env.Error, bodyBytes), false, nil)
		}
		return &env, nil
	}

	message := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, errorText(env.Error, bodyBytes))

	var cause error
	switch resp.StatusCode {
	case http.StatusNotFound:
		if leadID != "" {
			cause = models.NewLeadNotFoundError(leadID)
		}
	case http.StatusConflict:
		var actual int64
		if env.Lead != nil {
			actual = env.Lead.Version
		}
		var expected int64
		if p, ok := body.(*models.LeadPatch); ok && p != nil && p.Version != nil {
			expected = *p.Version
		}
		cause = models.NewVersionConflictError(leadID, expected, actual)
	}

	return nil, models.NewSyncError(resp.StatusCode, message, isRetriableStatusCode(resp.StatusCode), cause)
}

func errorText(msg string, body []byte) string {
	if msg != "" {
		return msg
	}
	return strings.TrimSpace(string(body))
}

// isRetriableStatusCode determines if an HTTP status code is worth a manual retry
func isRetriableStatusCode(statusCode int) bool {
	// 5xx errors are retriable (server errors)
	if statusCode >= 500 && statusCode < 600 {
		return true
	}

	// 429 Too Many Requests is retriable
	if statusCode == 429 {
		return true
	}

	// 4xx errors (except 429) are not retriable (client errors)
	return false
}
