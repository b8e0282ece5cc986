package e2etesting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type RequestOptions struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string
	// BearerToken, when set, is sent as "Authorization: Bearer <token>".
	BearerToken string
}

type Response struct {
	*http.Response
	Body []byte
}

// Envelope mirrors the JSON body every API endpoint answers with.
type Envelope struct {
	Code    int             `json:"code"`
	Reason  string          `json:"reason"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (r *Response) GetJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

func (r *Response) GetString() string {
	return string(r.Body)
}

func (r *Response) Envelope(t *testing.T) Envelope {
	t.Helper()

	var env Envelope
	require.NoError(t, r.GetJSON(&env), "response is not an envelope: %s", r.GetString())
	return env
}

// DecodeData unmarshals the envelope's data field into v.
func (r *Response) DecodeData(t *testing.T, v any) {
	t.Helper()

	env := r.Envelope(t)
	require.NoError(t, json.Unmarshal(env.Data, v), "failed to decode envelope data: %s", string(env.Data))
}

func (r *Response) AssertStatus(t *testing.T, expectedStatus int) {
	t.Helper()
	require.Equal(t, expectedStatus, r.StatusCode, "unexpected status code. Response: %s", r.GetString())
}

// AssertError checks both the HTTP status and the application code.
func (r *Response) AssertError(t *testing.T, expectedStatus, expectedCode int) {
	t.Helper()

	r.AssertStatus(t, expectedStatus)
	require.Equal(t, expectedCode, r.Envelope(t).Code, "unexpected application code. Response: %s", r.GetString())
}

func (r *Response) AssertContains(t *testing.T, expectedText string) {
	t.Helper()
	require.Contains(t, r.GetString(), expectedText, "response body does not contain expected text")
}

type HTTPClient struct {
	Client  *http.Client
	BaseURL string
}

func (c *HTTPClient) Get(path string) (*Response, error) {
	return c.Request(&RequestOptions{
		Method: http.MethodGet,
		Path:   path,
	})
}

func (c *HTTPClient) GetWithToken(path, token string) (*Response, error) {
	return c.Request(&RequestOptions{
		Method:      http.MethodGet,
		Path:        path,
		BearerToken: token,
	})
}

func (c *HTTPClient) Post(path string, body any) (*Response, error) {
	return c.Request(&RequestOptions{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
}

func (c *HTTPClient) Request(opts *RequestOptions) (*Response, error) {
	var bodyReader io.Reader
	if opts.Body != nil {
		jsonBody, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(opts.Method, c.BaseURL+opts.Path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+opts.BearerToken)
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		Response: resp,
		Body:     body,
	}, nil
}
