// idcprov/utils/http/httputils.go
package httputils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// NewJSONRequest builds a POST with a JSON body and the given content type.
// The returned payload is the exact body bytes, needed for request signing.
func NewJSONRequest(ctx context.Context, url, contentType string, body interface{}) (*http.Request, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return req, payload, nil
}

// Do sends req and reads the whole body. Non-2xx statuses are not errors;
// callers decide what counts as success.
func Do(client *http.Client, req *http.Request) (*Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	r, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer r.Body.Close()
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{StatusCode: r.StatusCode, Body: b}, nil
}
