// Package directory synchronizes the client with the membership-directory
// backend: it owns the REST client, the request-state table every screen
// reads, the listing cache and the search/hero-image view models.
package directory

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

	"memberdir/syncservice/internal/domain"
)

const (
	defaultUserAgent = "directory-sync/1.0"
	maxErrorBody     = 2048
	maxResponseBody  = 8 * 1024 * 1024
)

var ErrBackendUnavailable = errors.New("directory backend temporarily unavailable")

type ClientConfig struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

// Client talks to the directory REST backend. It returns wrapped errors;
// flattening to the single human-readable string stored in request state
// happens in the service layer.
type Client struct {
	base      *url.URL
	userAgent string
	client    *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		if err == nil {
			err = errors.New("missing scheme or host")
		}
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{base: base, userAgent: userAgent, client: httpClient}, nil
}

// ListProfiles fetches one listing page:
// GET /api/profiles?page=&limit=&location=&specialisation=.
func (c *Client) ListProfiles(ctx context.Context, listQuery domain.ListQuery) (domain.ProfilePage, error) {
	endpoint := c.base.JoinPath("/api/profiles")
	query := endpoint.Query()
	if listQuery.Page > 0 {
		query.Set("page", strconv.Itoa(listQuery.Page))
	}
	if listQuery.Limit > 0 {
		query.Set("limit", strconv.Itoa(listQuery.Limit))
	}
	if location := strings.TrimSpace(listQuery.Location); location != "" {
		query.Set("location", location)
	}
	if specialisation := strings.TrimSpace(listQuery.Specialisation); specialisation != "" {
		query.Set("specialisation", specialisation)
	}
	endpoint.RawQuery = query.Encode()

	var page domain.ProfilePage
	if err := c.doJSON(ctx, http.MethodGet, endpoint.String(), nil, &page); err != nil {
		return domain.ProfilePage{}, err
	}
	if page.Profiles == nil {
		page.Profiles = []domain.Profile{}
	}
	return page, nil
}

// RecordClick asks the backend to increment a profile's click counter:
// PUT /api/profile-clicks {_id}. The count itself is server-owned.
func (c *Client) RecordClick(ctx context.Context, profileID string) (domain.ClickReceipt, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return domain.ClickReceipt{}, errors.New("profile id is required")
	}
	body, err := json.Marshal(map[string]string{"_id": profileID})
	if err != nil {
		return domain.ClickReceipt{}, err
	}

	endpoint := c.base.JoinPath("/api/profile-clicks")
	var receipt domain.ClickReceipt
	if err := c.doJSON(ctx, http.MethodPut, endpoint.String(), body, &receipt); err != nil {
		return domain.ClickReceipt{}, err
	}
	return receipt, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body []byte, dest any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend HTTP %d: %s", resp.StatusCode, readServerMessage(resp.Body))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("unexpected backend payload: %w", err)
	}
	return nil
}

// readServerMessage extracts a business error message from a failure body,
// falling back to the raw (truncated) body text.
func readServerMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "no response body"
	}
	var structured struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil {
		if structured.Message != "" {
			return structured.Message
		}
		if structured.Error != "" {
			return structured.Error
		}
	}
	return trimmed
}

// flattenError collapses transport and server errors into the single
// human-readable message the request-state table stores. Structured codes
// are intentionally not preserved for the UI layer.
func flattenError(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "the directory is taking too long to respond, please try again"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, ErrBackendUnavailable):
		return "the directory is temporarily unavailable, please try again shortly"
	}
	return err.Error()
}
