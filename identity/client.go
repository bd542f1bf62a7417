// Package identity is the typed client for the platform's auth API. The
// anon-key Client covers visitor operations; Admin carries the service-role
// credential and must never be constructed in anything that serves browser
// traffic.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"nullashop.io/shop/models"
)

// Error carries the platform's status code and message through the call
// site so handlers can map it onto their own responses.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("identity: %s (status %d)", e.Message, e.StatusCode)
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, anonKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  anonKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// SignIn exchanges email/password credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var session models.Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", map[string]any{
		"email":    email,
		"password": password,
	}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SignUp registers a new account. fullName lands in user_metadata.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*models.Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if fullName != "" {
		body["data"] = map[string]any{"full_name": fullName}
	}

	var session models.Session
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SignOut revokes the session behind the access token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

// UserFromToken resolves the user a bearer token belongs to.
func (c *Client) UserFromToken(ctx context.Context, accessToken string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// AuthorizeURL builds the social sign-in redirect URL. The browser follows
// it; the platform redirects back with a session.
func (c *Client) AuthorizeURL(provider, redirectTo string) string {
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, dest any) error {
	return doRequest(ctx, c.http, c.baseURL+path, method, c.apiKey, bearer, body, dest)
}

// doRequest is shared with the Admin client. bearer defaults to the api key
// when empty, matching the platform's header conventions.
func doRequest(ctx context.Context, client *http.Client, fullURL, method, apiKey, bearer string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("apikey", apiKey)
	if bearer == "" {
		bearer = apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read identity response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if dest == nil || len(data) == 0 {
		return nil
	}
	if err = json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode identity response: %w", err)
	}
	return nil
}

// errorMessage digs the human message out of the platform's error bodies,
// which are not uniform across endpoints.
func errorMessage(data []byte) string {
	var body struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Err              string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		for _, m := range []string{body.Msg, body.Message, body.ErrorDescription, body.Err} {
			if m != "" {
				return m
			}
		}
	}
	if len(data) > 0 {
		return string(data)
	}
	return "unknown error"
}
