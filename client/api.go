package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// --- HTTP Helper Functions (kept private) ---

// createRequest builds the outbound request: JSON body, headers, and the bearer
// credential (the replay token if one was handed over, the session's otherwise).
func (c *Client) createRequest(ctx context.Context, req *Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		// Encoded per attempt so a replay sends the same payload.
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.endpoint(req.Path, req.Query), body)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Str("path", req.Path).Msg("Failed to create HTTP request object")
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	} else {
		c.session.AttachToken(httpReq)
	}
	if req.sendCredential {
		if cred := c.session.RefreshCredential(); cred != "" {
			httpReq.AddCookie(&http.Cookie{Name: c.refreshCookie, Value: cred})
		}
	}
	return httpReq, nil
}

// sendRequest performs one attempt and returns the status and body.
// Only transport failures are errors here; statuses are judged by Do.
func (c *Client) sendRequest(ctx context.Context, req *Request) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, req.Method, req.Path, err)
		}
	}

	httpReq, err := c.createRequest(ctx, req)
	if err != nil {
		return 0, nil, err
	}

	log.Debug().Str("method", req.Method).Str("path", req.Path).Bool("retried", req.retried).Msg("Sending HTTP request")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Str("path", req.Path).Msg("HTTP request failed")
		return 0, nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, req.Method, req.Path, err)
	}

	c.captureRefreshCookie(resp)

	body, err := readResponseBody(resp)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response of %s %s: %w", ErrNetwork, req.Method, req.Path, err)
	}
	log.Debug().Str("method", req.Method).Str("path", req.Path).Int("status", resp.StatusCode).Msg("HTTP request completed")
	return resp.StatusCode, body, nil
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Str("url", resp.Request.URL.String()).Msg("Failed to read response body")
		return nil, err
	}
	return body, nil
}

// decodeBody unmarshals a successful response. Empty bodies are fine for
// endpoints that return nothing.
func decodeBody(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		log.Error().Err(err).Str("body_preview", string(body[:min(len(body), 200)])).Msg("Failed to parse response JSON")
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
