// Package kis implements the Korea Investment & Securities REST gateway:
// token lifecycle, signed requests, quotes, balance, orders and the daily
// execution report the order tracker polls.
package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"kstrade/internal/application/port"
	"kstrade/internal/infrastructure/storage/statefile"
)

const tokenSafetyMargin = 10 * time.Minute

var _ port.Broker = (*Client)(nil)

// Client is the authenticated KIS REST client. Safe for use from a single
// goroutine; the token cache has its own lock so the holdings and report
// commands can share a client.
type Client struct {
	appKey    string
	appSecret string
	baseURL   string
	cano      string // account number prefix
	prdtCode  string // account product code suffix

	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
	tokenStore  *statefile.Store
}

// Options tunes the client; zero values select defaults.
type Options struct {
	TokenFile  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// New builds a client for the given credentials. accountNo is "CANO-PRDT".
func New(appKey, appSecret, baseURL, accountNo string, opts Options) (*Client, error) {
	parts := strings.SplitN(accountNo, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("malformed account number %q", accountNo)
	}
	if opts.TokenFile == "" {
		opts.TokenFile = "token.json"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Client{
		appKey:     appKey,
		appSecret:  appSecret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cano:       parts[0],
		prdtCode:   parts[1],
		httpClient: &http.Client{Timeout: opts.Timeout},
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		tokenStore: statefile.New(opts.TokenFile),
	}, nil
}

// isMock reports whether the base URL points at the paper-trading host,
// which requires the VT-prefixed transaction ids.
func (c *Client) isMock() bool {
	return strings.Contains(strings.ToLower(c.baseURL), "vts")
}

// trID picks the live or mock transaction id.
func (c *Client) trID(live, mock string) string {
	if c.isMock() {
		return mock
	}
	return live
}

type savedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	RequestedAt time.Time `json:"requested_at"`
}

// accessToken returns a cached token, reloading from disk or re-issuing via
// the client-credentials grant when the cache is within the safety margin
// of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	now := time.Now()
	if c.token != "" && now.Before(c.tokenExpiry.Add(-tokenSafetyMargin)) {
		return c.token, nil
	}

	var saved savedToken
	if ok, err := c.tokenStore.Load(&saved); err == nil && ok {
		if saved.AccessToken != "" && now.Before(saved.ExpiresAt.Add(-tokenSafetyMargin)) {
			c.token = saved.AccessToken
			c.tokenExpiry = saved.ExpiresAt
			return c.token, nil
		}
	}

	body, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.appKey,
		"appsecret":  c.appSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/tokenP", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token http %d: %s", resp.StatusCode, string(data))
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		Msg         string `json:"msg1"`
	}
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", fmt.Errorf("token decode: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token issue failed: %s", tr.Msg)
	}

	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 86400
	}
	c.token = tr.AccessToken
	c.tokenExpiry = now.Add(time.Duration(expiresIn) * time.Second)

	if err := c.tokenStore.Save(savedToken{
		AccessToken: c.token,
		ExpiresAt:   c.tokenExpiry,
		RequestedAt: now,
	}); err != nil {
		log.Warn().Err(err).Msg("token cache write failed")
	}
	return c.token, nil
}

// envelope is the common KIS response wrapper. rt_cd "0" means success.
type envelope struct {
	RtCd string `json:"rt_cd"`
	Msg  string `json:"msg1"`
}

func (e envelope) ok() bool { return e.RtCd == "0" }

// doGet issues a tr_id-tagged GET and decodes the JSON body into out.
// Transient failures (transport errors, 429, 5xx) are retried with a linear
// backoff up to maxRetries attempts.
func (c *Client) doGet(ctx context.Context, path, trID string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, trID, params, nil, out)
}

// doPost issues a tr_id-tagged POST with a JSON body.
func (c *Client) doPost(ctx context.Context, path, trID string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, trID, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path, trID string, params url.Values, body, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("appkey", c.appKey)
		req.Header.Set("appsecret", c.appSecret)
		req.Header.Set("tr_id", trID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("kis http %d: %s", resp.StatusCode, string(data))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("kis http %d: %s", resp.StatusCode, string(data))
		}

		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("kis decode %s: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("kis %s %s exhausted %d attempts: %w", method, path, c.maxRetries, lastErr)
}
