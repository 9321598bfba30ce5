package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

const defaultCountryCode = "US"

// Client probes the marketplace coverage API. One probe asks whether any
// retailer currently serves a given zip code.
type Client struct {
	baseURL     string
	countryCode string
	httpClient  *http.Client
	timeout     time.Duration
}

// NewClient builds a coverage API client authorized with a static bearer
// token.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = timeout

	return &Client{
		baseURL:     baseURL,
		countryCode: defaultCountryCode,
		httpClient:  httpClient,
		timeout:     timeout,
	}
}

// Probe queries coverage for one zip code and classifies the raw HTTP result.
// Network and HTTP-level failures are encoded in the outcome, not returned as
// errors; a non-nil error means the request could not be issued at all.
func (c *Client) Probe(ctx context.Context, zipCode string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/retailers?postal_code=%s&country_code=%s",
		c.baseURL, url.QueryEscape(zipCode), c.countryCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err), nil
	}
	defer resp.Body.Close()

	return classifyResponse(resp), nil
}

// classifyTransportError maps request failures to retryable outcomes.
// Timeouts are recorded with status 408 for diagnostics.
func classifyTransportError(err error) Outcome {
	status := 0
	if isTimeout(err) {
		status = http.StatusRequestTimeout
	}
	return Outcome{
		Kind:       TransientFailure,
		HTTPStatus: status,
		Cause:      err.Error(),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classifyResponse(resp *http.Response) Outcome {
	switch {
	case resp.StatusCode == http.StatusOK:
		return classifyOKBody(resp)
	case resp.StatusCode == http.StatusNotFound:
		// No coverage for this zip. Normal and expected.
		return Outcome{Kind: NotCovered, HTTPStatus: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return Outcome{Kind: RateLimited, HTTPStatus: resp.StatusCode, Cause: "rate limited (429)"}
	case resp.StatusCode >= 500:
		return Outcome{
			Kind:       TransientFailure,
			HTTPStatus: resp.StatusCode,
			Cause:      fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	default:
		return Outcome{
			Kind:       PermanentFailure,
			HTTPStatus: resp.StatusCode,
			Cause:      fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}
}

// classifyOKBody inspects a 200 payload. A 200 with an empty retailer list is
// NotCovered, never Covered.
func classifyOKBody(resp *http.Response) Outcome {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{
			Kind:       TransientFailure,
			HTTPStatus: resp.StatusCode,
			Cause:      fmt.Sprintf("failed to read response: %v", err),
		}
	}

	var payload struct {
		Retailers []Retailer `json:"retailers"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Outcome{
			Kind:       TransientFailure,
			HTTPStatus: resp.StatusCode,
			Cause:      fmt.Sprintf("failed to parse response: %v", err),
		}
	}

	if len(payload.Retailers) == 0 {
		return Outcome{Kind: NotCovered, HTTPStatus: resp.StatusCode}
	}
	return Outcome{
		Kind:       Covered,
		HTTPStatus: resp.StatusCode,
		Retailers:  payload.Retailers,
	}
}
