// Package client is the HTTP client the load driver uses to reach the
// ingestion API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries a per-request id so server logs can be matched
// with driver logs.
const RequestIDHeader = "X-Request-ID"

// Client sends requests to one base URL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Headers    map[string]string
	Encoding   string // request body Content-Encoding, empty for none
}

// New creates a client with the given per-request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		Headers: make(map[string]string),
	}
}

// SetHeader sets a default header for all requests.
func (c *Client) SetHeader(key, value string) {
	c.Headers[key] = value
}

// SetBearerToken sends token in the Authorization header of every request.
func (c *Client) SetBearerToken(token string) {
	c.SetHeader("Authorization", "Bearer "+token)
}

// SetEncoding compresses every request body with the named encoding.
func (c *Client) SetEncoding(name string) error {
	if !ValidEncoding(name) {
		return fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	c.Encoding = name
	return nil
}

// Request represents an API request. Body may be a string, []byte,
// io.Reader or any value that encodes to JSON.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    any
}

// Response represents an API response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	RequestID  string
	BytesSent  int // request body bytes on the wire
}

// JSON decodes the response body as JSON.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// String returns the response body as string.
func (r *Response) String() string {
	return string(r.Body)
}

// Do executes an API request and reads the whole response body.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	url := c.BaseURL + req.Path

	var payload []byte
	if req.Body != nil {
		switch b := req.Body.(type) {
		case string:
			payload = []byte(b)
		case []byte:
			payload = b
		case io.Reader:
			data, err := io.ReadAll(b)
			if err != nil {
				return nil, fmt.Errorf("reading request body: %w", err)
			}
			payload = data
		default:
			jsonBody, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("marshaling request body: %w", err)
			}
			payload = jsonBody
		}

		encoded, err := encodeBody(c.Encoding, payload)
		if err != nil {
			return nil, err
		}
		payload = encoded
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range c.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Body != nil && c.Encoding != EncodingIdentity {
		httpReq.Header.Set("Content-Encoding", c.Encoding)
	}
	requestID := httpReq.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		httpReq.Header.Set(RequestIDHeader, requestID)
	}

	start := time.Now()
	httpResp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		Duration:   time.Since(start),
		RequestID:  requestID,
		BytesSent:  len(payload),
	}, nil
}

// GET performs a GET request.
func (c *Client) GET(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path})
}

// POST performs a POST request.
func (c *Client) POST(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}
