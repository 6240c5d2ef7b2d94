// Package transport provides the authenticated HTTP client shared by
// the supplier adapters, including JSON decoding and the translation of
// HTTP status codes into the adapter error taxonomy.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/partsync/partsync/pkg/errors"
)

// DefaultHTTPTimeout bounds requests when the caller's context carries
// no deadline of its own.
var DefaultHTTPTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is read for the
// error message.
const maxErrorBody = 2048

// UserAgent identifies the importer to supplier APIs.
const UserAgent = "partsync/1.0"

// Client provides HTTP client functionality with authentication.
type Client struct {
	http       *http.Client
	auth       Authenticator
	credential string
	supplier   string
}

// New creates a transport client for one supplier. The supplier id is
// carried into every AdapterError the client produces.
func New(supplier string, auth Authenticator, credential string) *Client {
	if auth == nil {
		auth = &NoAuth{}
	}
	return &Client{
		http:       &http.Client{Timeout: DefaultHTTPTimeout},
		auth:       auth,
		credential: credential,
		supplier:   supplier,
	}
}

// Do performs an HTTP request with authentication applied. Non-2xx
// responses are consumed and returned as AdapterErrors classified by
// status code.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.credential != "" {
		c.auth.Apply(req, c.credential)
	}
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
	if req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch {
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &errors.AdapterError{
				Supplier: c.supplier, Endpoint: req.URL.Path,
				Transient: true, Message: "request timed out", Err: err,
			}
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		// Network-level failures are worth one more try.
		return nil, &errors.AdapterError{
			Supplier: c.supplier, Endpoint: req.URL.Path,
			Transient: true, Message: err.Error(), Err: err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		ae := errors.NewAdapterError(c.supplier, resp.StatusCode, strings.TrimSpace(string(body)), nil)
		ae.Endpoint = req.URL.Path
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &errors.AuthenticationError{
				Service: c.supplier, Method: "api_key",
				Message: "supplier rejected credentials", Err: ae,
			}
		}
		return nil, ae
	}
	return resp, nil
}

// Get performs a GET request against url with optional query values.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values) (*http.Response, error) {
	if len(query) > 0 {
		rawURL = rawURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &errors.AdapterError{
			Supplier: c.supplier, Message: "cannot build request for " + rawURL, Err: err,
		}
	}
	return c.Do(req)
}

// GetJSON performs a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	resp, err := c.Get(ctx, rawURL, query)
	if err != nil {
		return err
	}
	return DecodeJSON(c.supplier, resp, out)
}

// PostForm performs a form-encoded POST, used for OAuth token endpoints.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &errors.AdapterError{
			Supplier: c.supplier, Message: "cannot build request for " + rawURL, Err: err,
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(req)
}

// DecodeJSON decodes and closes a response body.
func DecodeJSON(supplier string, resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapParse("json", supplier+" response", err)
	}
	return nil
}

// StatusCode extracts the HTTP status from an adapter error chain, 0
// when there is none. Adapters use it to tolerate statuses their API
// abuses, like TI returning 403 for non-TI parts.
func StatusCode(err error) int {
	var ae *errors.AdapterError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}
