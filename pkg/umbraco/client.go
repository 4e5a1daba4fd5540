package umbraco

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenPath is the back-office token endpoint, relative to the base URL.
const TokenPath = "/umbraco/management/api/v1/security/back-office/token"

// Config contains configuration for the management API client.
type Config struct {
	// BaseURL is the root of the Umbraco installation.
	// Example: "https://cms.example.com"
	BaseURL string

	// ClientID and ClientSecret identify a back-office API user.
	ClientID     string
	ClientSecret string

	// Timeout for HTTP requests. Default: 30 seconds.
	Timeout time.Duration

	Logger hclog.Logger
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base URL must use http or https scheme, got: %s", parsedURL.Scheme)
	}

	return nil
}

func (c *Config) newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: c.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Client talks to the Umbraco management API. It owns the base endpoint and
// credentials and caches the bearer token obtained from the client-credentials
// grant. The publish pipeline issues requests strictly sequentially, so the
// token cache is unsynchronized by design.
type Client struct {
	baseURL    string
	creds      clientcredentials.Config
	httpClient *http.Client
	logger     hclog.Logger

	token string
}

// New creates a management API client.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid umbraco client config: %w", err)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		creds: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.BaseURL + TokenPath,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: cfg.newHTTPClient(),
		logger:     cfg.Logger.Named("umbraco"),
	}, nil
}

// getValidToken returns the cached bearer token, performing the
// client-credentials exchange when no token is cached. The token is
// invalidated only by ClearToken or a 401 response, never by a timer.
func (c *Client) getValidToken(ctx context.Context) (string, error) {
	if c.token != "" {
		return c.token, nil
	}

	if c.creds.ClientID == "" || c.creds.ClientSecret == "" {
		return "", ErrMissingCredentials
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.creds.Token(ctx)
	if err != nil {
		return "", &AuthError{Err: err}
	}

	c.logger.Debug("obtained bearer token")
	c.token = tok.AccessToken
	return c.token, nil
}

// ClearToken drops the cached bearer token, forcing re-authentication on the
// next call.
func (c *Client) ClearToken() {
	c.token = ""
}

// Call performs a JSON request against the management API. body is serialized
// as JSON when non-nil; on a 2xx response the body is decoded into result when
// result is non-nil. Empty successful bodies are treated as success for
// writes, and leave result untouched for reads.
func (c *Client) Call(ctx context.Context, method, path string, body, result interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	build := func(token string) (*http.Request, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}

	respBody, err := c.do(ctx, build)
	if err != nil {
		return err
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		// Writes commonly answer 201/204 with no body.
		c.logger.Debug("empty response body", "method", method, "path", path)
		return nil
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		if method == http.MethodPost || method == http.MethodPut {
			// A successful write with a non-JSON body is still a success.
			c.logger.Debug("non-JSON response to successful write",
				"method", method, "path", path, "body", string(respBody))
			return nil
		}
		return &ParseError{Body: string(respBody), Err: err}
	}

	return nil
}

// do executes a request built by build, attaching a valid bearer token. A 401
// response invalidates the cached token and the request is retried once with
// a freshly obtained token.
func (c *Client) do(ctx context.Context, build func(token string) (*http.Request, error)) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.getValidToken(ctx)
		if err != nil {
			return nil, err
		}

		req, err := build(token)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.logger.Debug("401 response, re-authenticating", "path", req.URL.Path)
			c.ClearToken()
			continue
		}

		return nil, classifyStatus(resp.StatusCode, respBody)
	}
}

func classifyStatus(status int, body []byte) error {
	apiErr := &APIError{
		Status: status,
		Detail: string(body),
		Body:   string(body),
	}

	// Validation failures echo RFC 7807 problem details worth surfacing.
	if status == http.StatusBadRequest {
		var pd problemDetails
		if err := json.Unmarshal(body, &pd); err == nil && pd.Title != "" {
			detail := pd.Title
			if pd.Detail != "" {
				detail = fmt.Sprintf("%s: %s", pd.Title, pd.Detail)
			}
			apiErr.Detail = detail
		}
	}

	return apiErr
}
