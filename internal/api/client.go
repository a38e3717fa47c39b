package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"casinoclient/internal/models"

	"github.com/google/jsonapi"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const mediaType = "application/vnd.api+json"

// TokenSource supplies the bearer token attached to authenticated requests.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a plain function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string {
	return f()
}

// Client talks to the casino backend's REST/JSON:API surface.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// do issues a request and returns the raw response body. Non-2xx responses become *Error.
func (c *Client) do(ctx context.Context, method, path, token string, body interface{}) ([]byte, http.Header, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, err
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", mediaType)
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	log.WithFields(log.Fields{
		"component":  "api",
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"duration":   time.Since(start),
	}).Debug("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.Header, newError(resp.StatusCode, respBody)
	}
	return respBody, resp.Header, nil
}

// call sends an authenticated request with the session token.
func (c *Client) call(ctx context.Context, method, path string, body interface{}) ([]byte, http.Header, error) {
	return c.do(ctx, method, path, c.token(), body)
}

func newError(status int, body []byte) *Error {
	apiErr := &Error{StatusCode: status}

	var doc struct {
		Errors []*jsonapi.ErrorObject `json:"errors"`
		Error  string                 `json:"error"`
	}
	if err := json.Unmarshal(body, &doc); err == nil {
		apiErr.Errors = doc.Errors
		apiErr.Message = doc.Error
	}
	return apiErr
}

// pageFromHeader reads the total-pages and current-page headers, falling back to the requested page.
func pageFromHeader(header http.Header, requested int) models.Page {
	page := models.Page{Current: requested, Total: requested}
	if v, err := strconv.Atoi(header.Get("current-page")); err == nil {
		page.Current = v
	}
	if v, err := strconv.Atoi(header.Get("total-pages")); err == nil {
		page.Total = v
	}
	return page
}

func pagePath(path string, page int) string {
	if page < 1 {
		page = 1
	}
	return path + "?page=" + strconv.Itoa(page)
}

func list[T any, R any, PR interface {
	*R
	resource[T]
}](ctx context.Context, c *Client, path string, page int) ([]T, models.Page, error) {
	if page < 1 {
		page = 1
	}
	raw, header, err := c.call(ctx, http.MethodGet, pagePath(path, page), nil)
	if err != nil {
		return nil, models.Page{}, err
	}
	items, err := unmarshalMany[T, R, PR](raw)
	if err != nil {
		return nil, models.Page{}, err
	}
	return items, pageFromHeader(header, page), nil
}

func single[T any, R any, PR interface {
	*R
	resource[T]
}](ctx context.Context, c *Client, method, path string, body interface{}) (T, error) {
	raw, _, err := c.call(ctx, method, path, body)
	if err != nil {
		var zero T
		return zero, err
	}
	return unmarshalOne[T, R, PR](raw)
}

// resourcePath joins path segments, escaping ids taken from callers.
func resourcePath(prefix, id, action string) string {
	p := prefix + "/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}
