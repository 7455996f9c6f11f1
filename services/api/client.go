package apisvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

const (
	HeaderRequestID = "X-Request-ID"
	maxErrorBody    = 4 << 10
)

// Client talks to the admissions REST API on behalf of one bearer token.
// It implements the lead, user, analytics, notification and report repositories.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  core.Logger
	now     func() time.Time
}

func New(conf *core.Config, logger core.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(conf.API.BaseURL, "/"),
		http:    &http.Client{Timeout: conf.API.RequestTimeout},
		logger:  logger,
		now:     time.Now,
	}
}

// WithToken returns a copy of the client authenticated with token.
func (c *Client) WithToken(token string) *Client {
	cc := *c
	cc.token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	return &cc
}

// TokenExpired reports whether token is a JWT whose exp has passed. The signature is not
// checked: that is the identity provider's job. Opaque tokens never expire locally.
func TokenExpired(token string, now time.Time) bool {
	claims := &jwt.StandardClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != 0 && !claims.VerifyExpiresAt(now.Unix(), true)
}

type request struct {
	method string
	path   string
	query  url.Values
	body   interface{}
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	if c.token == "" || TokenExpired(c.token, c.now()) {
		return nil, core.ErrSessionExpired
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, uuid.NewString())
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send performs the request and returns the response when it is a 2xx.
// The caller closes the body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", map[string]interface{}{
			"method":     r.method,
			"path":       r.path,
			"request_id": req.Header.Get(HeaderRequestID),
		})
		return nil, &core.TransportError{Err: err}
	}
	c.logger.Debug("api request", map[string]interface{}{
		"method":     r.method,
		"path":       r.path,
		"status":     resp.StatusCode,
		"request_id": req.Header.Get(HeaderRequestID),
		"duration":   c.now().Sub(start).String(),
	})
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, responseError(resp)
}

// do sends r and decodes a JSON response into dest, if given.
func (c *Client) do(ctx context.Context, r request, dest interface{}) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &core.TransportError{Err: errors.Wrapf(err, "decoding %s %s", r.method, r.path)}
	}
	return nil
}

func responseError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return core.ErrSessionExpired
	case http.StatusForbidden:
		return core.ErrForbidden
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &core.APIError{StatusCode: resp.StatusCode, Message: errorMessage(b)}
}

// errorMessage extracts {"detail": "..."} (or a list of {"msg": ...}) from an error body.
func errorMessage(b []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return strings.TrimSpace(string(b))
	}
	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil {
		return detail
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			msgs = append(msgs, it.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return body.Message
}

// notFound maps a 404 to err, leaving anything else untouched.
func notFound(err, with error) error {
	if apiErr, ok := errors.Cause(err).(*core.APIError); ok && apiErr.StatusCode == http.StatusNotFound {
		return with
	}
	return err
}
