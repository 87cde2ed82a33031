package wialon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fleet-telemetry-reporter/internal/config"
	"fleet-telemetry-reporter/internal/logger"
	apperrors "fleet-telemetry-reporter/pkg/errors"
)

// Client talks to the Wialon remote API. All requests go through one
// endpoint; the service name and a JSON-encoded params blob are posted as
// form data together with the session id.
//
// The client owns session state: Login establishes a session and
// Request transparently re-logs-in when the API reports the session
// invalid. Callers never see session identifiers.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	loadCount  int

	mu        sync.Mutex
	sessionID string
}

func NewClient(cfg *config.Wialon) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
		maxRetries: cfg.MaxRetries,
		loadCount:  cfg.MessageLoadCount,
	}
}

// Login exchanges the API token for a session id.
func (c *Client) Login(ctx context.Context) error {
	params, _ := json.Marshal(map[string]string{"token": c.token})

	body, err := c.post(ctx, svcLogin, string(params), "")
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrLoginFailed, err)
	}

	var result loginResult
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrLoginFailed, err)
	}
	if result.SessionID == "" {
		return apperrors.ErrLoginFailed
	}

	c.mu.Lock()
	c.sessionID = result.SessionID
	c.mu.Unlock()

	logger.Info("Logged in to Wialon API", zap.String("user", result.UserName))
	return nil
}

// Logout invalidates the current session. Errors are logged, not returned:
// a failed logout leaves nothing for the caller to recover.
func (c *Client) Logout(ctx context.Context) {
	c.mu.Lock()
	sid := c.sessionID
	c.sessionID = ""
	c.mu.Unlock()

	if sid == "" {
		return
	}
	if _, err := c.post(ctx, svcLogout, "{}", sid); err != nil {
		logger.Warn("Logout failed", zap.Error(err))
		return
	}
	logger.Info("Logged out of Wialon API")
}

// Request executes one API call with rate limiting, exponential backoff
// and session renewal. Transport failures and expired sessions are
// retried; any other API error fails immediately.
func (c *Client) Request(ctx context.Context, service string, params interface{}) (json.RawMessage, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params for %s: %w", service, err)
	}

	c.mu.Lock()
	sid := c.sessionID
	c.mu.Unlock()
	if sid == "" {
		return nil, apperrors.ErrNotLoggedIn
	}

	var body json.RawMessage
	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		c.mu.Lock()
		sid := c.sessionID
		c.mu.Unlock()

		result, reqErr := c.post(ctx, service, string(encoded), sid)
		if reqErr == nil {
			body = result
			return nil
		}

		var apiErr *apiError
		if errors.As(reqErr, &apiErr) {
			if apiErr.Code == 1 {
				logger.Warn("Session expired, re-logging in", zap.String("service", service))
				if loginErr := c.Login(ctx); loginErr != nil {
					return loginErr
				}
				return retry.RetryableError(apperrors.ErrSessionExpired)
			}
			// Genuine API rejection: retrying will not help.
			return apperrors.NewAppError("WIALON_API_ERROR", service, reqErr)
		}
		return retry.RetryableError(reqErr)
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Units lists every tracked unit, sorted by name, with sensor definitions
// attached.
func (c *Client) Units(ctx context.Context) ([]Unit, error) {
	params := map[string]interface{}{
		"spec": map[string]interface{}{
			"itemsType":     "avl_unit",
			"propName":      "sys_name",
			"propValueMask": "*",
			"sortType":      "sys_name",
		},
		"force": 1,
		"flags": unitDataFlags,
		"from":  0,
		"to":    0,
	}

	body, err := c.Request(ctx, svcSearchItems, params)
	if err != nil {
		return nil, err
	}

	var result searchItemsResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode units: %w", err)
	}
	var units []Unit
	if err := json.Unmarshal(result.Items, &units); err != nil {
		return nil, fmt.Errorf("decode units: %w", err)
	}
	return units, nil
}

// Drivers lists every registered driver.
func (c *Client) Drivers(ctx context.Context) ([]Driver, error) {
	params := map[string]interface{}{
		"spec": map[string]interface{}{
			"itemsType":     "avl_driver",
			"propName":      "sys_name",
			"propValueMask": "*",
			"sortType":      "sys_name",
		},
		"force": 1,
		"flags": 0x00000001,
		"from":  0,
		"to":    0,
	}

	body, err := c.Request(ctx, svcSearchItems, params)
	if err != nil {
		return nil, err
	}

	var result searchItemsResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode drivers: %w", err)
	}
	var drivers []Driver
	if err := json.Unmarshal(result.Items, &drivers); err != nil {
		return nil, fmt.Errorf("decode drivers: %w", err)
	}
	return drivers, nil
}

// Messages loads every message for one unit within [from, to]. The count
// is capped by the configured load count; no pagination cursor exists on
// this endpoint.
func (c *Client) Messages(ctx context.Context, unitID int64, from, to time.Time) ([]RawMessage, error) {
	params := map[string]interface{}{
		"itemId":    unitID,
		"timeFrom":  from.Unix(),
		"timeTo":    to.Unix(),
		"flags":     0,
		"flagsMask": 65535,
		"loadCount": c.loadCount,
	}

	body, err := c.Request(ctx, svcLoadInterval, params)
	if err != nil {
		return nil, err
	}

	var result loadIntervalResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return result.Messages, nil
}

// post performs one HTTP round trip and surfaces API-level errors as
// *apiError values.
func (c *Client) post(ctx context.Context, service, params, sid string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("svc", service)
	form.Set("params", params)
	if sid != "" {
		form.Set("sid", sid)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/wialon/ajax.html", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, service)
	}

	// The API reports failures inside a 200 response.
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Code != 0 {
		return nil, &envelope
	}

	return body, nil
}
