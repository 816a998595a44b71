// Package upstream talks to the portal gateway: the JSON facade in
// front of the university systems that does the actual page scraping.
// This service treats it as an authenticated REST API and never
// parses markup itself.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unisight/backend/internal/domain/portal"
)

const defaultTimeout = 20 * time.Second

// Client calls the portal gateway. It implements the fetch,
// authentication and course interfaces of the domain layer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption is a functional option for configuring the client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithClientLogger sets the logger for the client
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate verifies a credential pair against the gateway.
// (false, nil) means the portal rejected the pair; an error means the
// check itself could not be completed.
func (c *Client) Authenticate(ctx context.Context, username, password string) (bool, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/verify", strings.NewReader(string(body)))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return false, nil
	default:
		return false, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
}

// CategoryFetcher returns a Fetcher for one category endpoint.
func (c *Client) CategoryFetcher(category portal.Category) portal.Fetcher {
	return portal.FetcherFunc(func(ctx context.Context, username, password string) portal.FetchResult {
		return c.fetchJSON(ctx, username, password, "/students/"+url.PathEscape(username)+"/"+string(category))
	})
}

// ListCourses implements portal.CourseLister.
func (c *Client) ListCourses(ctx context.Context, username, password string) ([]portal.CourseRef, error) {
	result := c.fetchJSON(ctx, username, password, "/students/"+url.PathEscape(username)+"/courses")
	switch result.Outcome {
	case portal.FetchSuccess:
		var courses []portal.CourseRef
		raw, err := json.Marshal(result.Value)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &courses); err != nil {
			return nil, fmt.Errorf("course list not decodable: %w", err)
		}
		return courses, nil
	case portal.FetchSoftError:
		return nil, fmt.Errorf("course list unavailable: %s", result.Reason)
	default:
		return nil, fmt.Errorf("course list fetch failed")
	}
}

// FetchContent implements portal.ContentFetcher.
func (c *Client) FetchContent(ctx context.Context, username, password, courseURL string) portal.FetchResult {
	return c.fetchJSON(ctx, username, password, "/content?course="+url.QueryEscape(courseURL))
}

// FetchAnnouncement implements portal.ContentFetcher.
func (c *Client) FetchAnnouncement(ctx context.Context, username, password, courseURL string) portal.FetchResult {
	return c.fetchJSON(ctx, username, password, "/announcement?course="+url.QueryEscape(courseURL))
}

// fetchJSON performs one authenticated GET and classifies the
// response: 2xx with a body is a success, 404 and 503 are diagnosed
// declines, anything else is a hard failure worth retrying.
func (c *Client) fetchJSON(ctx context.Context, username, password, path string) portal.FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.logger.Error("failed to build gateway request", zap.String("path", path), zap.Error(err))
		return portal.HardFailure()
	}
	req.SetBasicAuth(username, password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("gateway request failed", zap.String("path", path), zap.Error(err))
		return portal.HardFailure()
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return portal.SoftError("no data published")
	case resp.StatusCode == http.StatusServiceUnavailable:
		return portal.SoftError("portal maintenance")
	case resp.StatusCode == http.StatusUnauthorized:
		return portal.SoftError("credentials rejected by portal")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Warn("gateway returned unexpected status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return portal.HardFailure()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return portal.HardFailure()
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		c.logger.Warn("gateway payload not decodable", zap.String("path", path), zap.Error(err))
		return portal.HardFailure()
	}
	if value == nil {
		return portal.HardFailure()
	}
	return portal.Success(value)
}

// Interface checks
var (
	_ portal.Authenticator  = (*Client)(nil)
	_ portal.CourseLister   = (*Client)(nil)
	_ portal.ContentFetcher = (*Client)(nil)
)
