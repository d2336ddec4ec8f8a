// Package httpclient implements the HTTP client contract (spec.md §6): a
// single shared client dispatches every concrete API's request, carrying
// one cookie jar across the whole run so that server-set session cookies
// persist between sibling requests the way a browser session would.
//
// Grounded on internal/client/client.go's AdminClient, generalized from a
// single fixed-endpoint admin API to an arbitrary method/URL/header/body
// request and widened from a bare 5s timeout constant to a configurable
// one.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// Request is one fully-resolved (post-substitution) HTTP request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Auth    *BasicAuth
	Body    any // nil, or a JSON-marshalable value
}

type BasicAuth struct {
	Username string
	Password string
}

// Response is the result of dispatching a Request. Raw always holds the
// response bytes. Body holds the decoded JSON value when the body is
// non-empty, parses as JSON, and the Content-Type (parameters ignored) is
// application/json, text/json, or absent; otherwise Body is nil.
type Response struct {
	Status  int
	Headers http.Header
	Raw     []byte
	Body    any
}

// Client wraps http.Client with the shared cookie jar and default timeout
// every concrete API request uses.
type Client struct {
	http *http.Client
}

// New builds a Client with its own cookie jar. timeout of zero means no
// per-request deadline beyond ctx's own.
func New(timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: building cookie jar: %w", err)
	}
	return &Client{http: &http.Client{Jar: jar, Timeout: timeout}}, nil
}

// Do sends req and returns its Response. A non-2xx/3xx/4xx/5xx transport
// failure (DNS, connection refused, timeout) is reported as an error;
// receiving any HTTP status code, however unexpected, is not an error at
// this layer — internal/runtime decides whether the status matches what
// the concrete API expected.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("httpclient: building request: %w", err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Auth != nil {
		httpReq.SetBasicAuth(req.Auth.Username, req.Auth.Password)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("httpclient: dispatching %s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: reading response body: %w", err)
	}

	out := &Response{Status: resp.StatusCode, Headers: resp.Header, Raw: raw}
	if len(raw) > 0 && isJSON(resp.Header.Get("Content-Type")) {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			out.Body = decoded
		}
	}
	return out, nil
}

func isJSON(contentType string) bool {
	for i := 0; i < len(contentType); i++ {
		if contentType[i] == ';' {
			contentType = contentType[:i]
			break
		}
	}
	return contentType == "application/json" || contentType == "text/json" || contentType == ""
}
