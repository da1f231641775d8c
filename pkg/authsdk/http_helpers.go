package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aussiebroadwan/authkit/pkg/idx"
)

// Headers sent with every request.
const (
	HeaderEnvironment = "X-Environment"
	HeaderRequestID   = "X-Request-ID"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// doJSON sends body (if non-nil) as JSON to path and decodes a 2xx reply into
// out (if non-nil). Every failure is an *Error that has already been passed
// to OnError.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return c.report(&Error{Kind: ErrNetwork, Message: "failed to encode request", Err: err})
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, rdr)
	if err != nil {
		return c.report(&Error{Kind: ErrNetwork, Message: "failed to create request", Err: err})
	}

	reqID := idx.New().String()
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderEnvironment, string(c.Environment()))
	req.Header.Set(HeaderRequestID, reqID)

	log := c.logger.With("method", method, "path", path, "req_id", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		log.DebugContext(ctx, "auth api request failed", "err", err)
		return c.report(&Error{Kind: ErrNetwork, Message: fmt.Sprintf("failed to send request: %v", err), Err: err})
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.report(&Error{Kind: ErrNetwork, StatusCode: resp.StatusCode, Message: "failed to read response body", Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseErrorResponse(resp.StatusCode, bodyBytes)
		log.DebugContext(ctx, "auth api rejected request", "status", resp.StatusCode, "message", apiErr.Message)
		return c.report(apiErr)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return c.report(&Error{Kind: ErrNetwork, StatusCode: resp.StatusCode, Message: "failed to decode response", Err: err})
	}
	return nil
}

// report hands err to OnError once and returns it.
func (c *Client) report(err *Error) *Error {
	if err.reported {
		return err
	}
	err.reported = true
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
	return err
}
