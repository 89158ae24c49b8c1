package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/polyrabbit/crypto-tracker/config"
	"github.com/sirupsen/logrus"
)

const userAgent = "Mozilla/5.0 (compatible; crypto-tracker; +https://github.com/polyrabbit/crypto-tracker)"

// TokenSource yields the stored bearer credential, "" when signed out.
type TokenSource interface {
	Token() string
}

type Client struct {
	StdClient *http.Client
	BaseURL   *url.URL
	tokens    TokenSource
}

func New(cfg *config.Config, tokens TokenSource) (*Client, error) {
	baseURL, err := url.Parse(cfg.API)
	if err != nil {
		return nil, errors.Wrapf(err, "parse api url %s", cfg.API)
	}

	stdClient := &http.Client{}
	if cfg.Timeout != 0 {
		logrus.Debugf("HTTP request timeout is set to %d seconds", cfg.Timeout)
		stdClient.Timeout = cfg.HTTPTimeout()
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			logrus.Warnf("Failed to parse proxy URL: %s, error: %v, using system proxy", cfg.Proxy, err)
		} else {
			transport := http.DefaultTransport.(*http.Transport).Clone()
			transport.Proxy = http.ProxyURL(proxyURL)
			logrus.Debugf("Using proxy %s", cfg.Proxy)
			stdClient.Transport = transport
		}
	}
	return &Client{StdClient: stdClient, BaseURL: baseURL, tokens: tokens}, nil
}

func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, endpoint, params, nil)
}

func (c *Client) Post(ctx context.Context, endpoint string, body interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPost, endpoint, nil, body)
}

func (c *Client) Delete(ctx context.Context, endpoint string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// buildURL appends endpoint, an already escaped path, to the base URL.
func (c *Client) buildURL(endpoint string, params map[string]string) (string, error) {
	u := *c.BaseURL
	rawPath := strings.TrimSuffix(u.EscapedPath(), "/") + "/" + strings.TrimPrefix(endpoint, "/")
	unescaped, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", errors.Wrapf(err, "invalid endpoint %s", endpoint)
	}
	u.Path, u.RawPath = unescaped, rawPath
	if params != nil {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, params map[string]string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s %s", method, endpoint)
		}
		reqBody = bytes.NewReader(payload)
	}

	rawURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Add("Cache-Control", "no-store")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// No token, no header; the backend decides whether that is acceptable
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	logrus.WithField("request_id", requestID).Debugf("%s %s", method, rawURL)
	resp, err := c.StdClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !(resp.StatusCode >= 200 && resp.StatusCode < 300) {
		// Most non-200 responses have valid json body
		return respBytes, &ResponseError{StatusCode: resp.StatusCode, Status: resp.Status, Body: respBytes}
	}
	return respBytes, nil
}

type ResponseError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *ResponseError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return "HTTP " + e.Status + ", body " + string(body)
}

// Message is the human readable reason the backend gave, "" if none.
func (e *ResponseError) Message() string {
	for _, key := range []string{"error", "message"} {
		if msg, err := jsonparser.GetString(e.Body, key); err == nil && strings.TrimSpace(msg) != "" {
			return msg
		}
	}
	return ""
}

// StatusCode unwraps err down to a *ResponseError and returns its status, 0 otherwise.
func StatusCode(err error) int {
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// ErrorMessage returns the backend supplied message carried by err, or fallback.
func ErrorMessage(err error, fallback string) string {
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		if msg := respErr.Message(); msg != "" {
			return msg
		}
	}
	return fallback
}
