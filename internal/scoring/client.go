package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
)

// SubmissionsPath is the endpoint the client posts to.
const SubmissionsPath = "/api/scoring/submissions"

// Client submits analyses to a remote scoring service over HTTP.
type Client struct {
	baseURL string
	c       *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		c: &http.Client{
			Transport: tr,
			Timeout:   time.Minute,
		},
	}
}

// Submit posts the submission and maps typed rejections to failure errors.
// It never retries.
func (c *Client) Submit(ctx context.Context, sub *Submission) (*Result, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	b, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("submission marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+SubmissionsPath, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.c.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, failure.BackendError(failure.CodeServerError, "scoring service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		const maxErr = 4096
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErr))
		return nil, rejection(resp, body)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, failure.BackendError(failure.CodeServerError, "malformed scoring response", err)
	}
	return &out, nil
}

// rejection converts a non-success response into a Backend failure.
// A typed code in the body takes precedence over the status code.
func rejection(resp *http.Response, body []byte) error {
	var eb ErrorBody
	_ = json.Unmarshal(body, &eb)

	code := eb.Code
	if code == "" {
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			code = failure.CodeWeeklyLimitExceeded
		case http.StatusUnprocessableEntity:
			code = failure.CodeExerciseNotSupported
		default:
			code = failure.CodeServerError
		}
	}

	msg := eb.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = resp.Status
	}

	switch code {
	case failure.CodeWeeklyLimitExceeded, failure.CodeExerciseNotSupported:
		fe := failure.BackendError(code, msg, nil)
		if eb.ResetAt != nil {
			fe.ResetAt = *eb.ResetAt
		}
		return fe
	case failure.CodeInvalidInput:
		return failure.Invalid(msg)
	default:
		return failure.BackendError(failure.CodeServerError, "scoring service error",
			errors.New(resp.Status+": "+msg))
	}
}
