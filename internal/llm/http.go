package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 120 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     1 * time.Minute,
		},
	}
}

// errorDecoder extracts a message and error type from a non-200 response body
type errorDecoder func(body []byte) (message, errType string)

// postJSON sends payload and returns the response body of a 200 response.
// Any other outcome is returned as an *Error.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload any, decodeErr errorDecoder) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(provider, KindTransient, 0, "marshaling request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, newError(provider, KindTransient, 0, "creating request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return do(client, req, provider, headers, decodeErr)
}

// getJSON fetches url and returns the response body of a 200 response
func getJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, decodeErr errorDecoder) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, newError(provider, KindTransient, 0, "creating request", err)
	}
	req.Header.Set("Accept", "application/json")

	return do(client, req, provider, headers, decodeErr)
}

func do(client *http.Client, req *http.Request, provider string, headers map[string]string, decodeErr errorDecoder) ([]byte, error) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, newError(provider, KindTransient, 0, fmt.Sprintf("calling %s API", provider), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(provider, KindTransient, resp.StatusCode, "reading response", err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := kindForStatus(resp.StatusCode)
		message := string(body)
		if decodeErr != nil {
			if msg, errType := decodeErr(body); msg != "" || errType != "" {
				kind = kindForType(kind, errType)
				if msg != "" {
					message = msg
				}
			}
		}
		return nil, newError(provider, kind, resp.StatusCode, message, nil)
	}

	return body, nil
}
