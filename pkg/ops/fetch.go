package ops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// FetchOptions is the fetch op's optional second argument.
type FetchOptions struct {
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// FetchResponse is the fetch op's return value.
type FetchResponse struct {
	Method  string            `json:"method"`
	OK      bool              `json:"ok"`
	Status  uint32            `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
}

var errSandboxedFetch = errors.New("will not run fetch in sandboxed mode")

var allowedFetchMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "HEAD": true, "PATCH": true,
}

// Fetch implements the fetch op: a single HTTP request, refused outright
// when the call is sandboxed (spec.md's sandboxed path has no network
// access, matching the original's "Will not run fetch in sandboxed mode").
func (c *Context) Fetch(ctx context.Context, url string, opts *FetchOptions) (FetchResponse, error) {
	if c.Sandboxed {
		return FetchResponse{}, errSandboxedFetch
	}
	if opts == nil {
		opts = &FetchOptions{}
	}
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = "GET"
	}
	if !allowedFetchMethods[method] {
		return FetchResponse{}, fmt.Errorf("unsupported method: %s", method)
	}

	var body io.Reader
	if opts.Body != "" {
		body = strings.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return FetchResponse{}, err
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return FetchResponse{}, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return FetchResponse{
		Method:  method,
		OK:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:  uint32(resp.StatusCode),
		Headers: headers,
		Body:    string(respBody),
	}, nil
}
