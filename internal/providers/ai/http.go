package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const maxResponseBytes = 4 << 20

// postJSON sends payload and returns the raw response body. Failures come back
// as *ProviderError with the reason used in fallback reporting.
func postJSON(ctx context.Context, client *http.Client, provider, endpoint string, headers map[string]string, payload any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, providerError(provider, "encode_request", 0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, providerError(provider, "build_request", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, providerError(provider, reasonOf(ctx.Err()), 0, ctx.Err())
		}
		return nil, providerError(provider, "http_request", 0, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, providerError(provider, "read_response", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		return nil, providerError(provider, fmt.Sprintf("http_%d", resp.StatusCode), resp.StatusCode, fmt.Errorf("%s status %d: %s", provider, resp.StatusCode, vendorMessage(body)))
	}
	return body, nil
}

// vendorMessage pulls the error message out of the vendor error envelopes.
func vendorMessage(body []byte) string {
	for _, path := range []string{"error.message", "error.status", "message", "error"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
