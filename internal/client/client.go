// Package client is a small HTTP client for the login API, used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/loginapp/internal/server/httpapi"
)

// User mirrors the user object returned by the API.
type User struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResult holds everything a successful login returns: the user, the JWT
// access token from the body, and the opaque session token from the cookie.
type LoginResult struct {
	User         User
	AccessToken  string
	SessionToken string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type apiEnvelope struct {
	Success bool   `json:"success"`
	User    User   `json:"user"`
	Token   string `json:"token"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, payload any, sessionToken string) (*apiEnvelope, *http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: httpapi.SessionCookieName, Value: sessionToken})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	envelope := &apiEnvelope{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, envelope); err != nil {
			return nil, nil, fmt.Errorf("unexpected response (status %d): %s", resp.StatusCode, data)
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if envelope.Error != "" {
			return nil, nil, fmt.Errorf("server: %s (status %d)", envelope.Error, resp.StatusCode)
		}
		return nil, nil, fmt.Errorf("server: status %d", resp.StatusCode)
	}

	return envelope, resp, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, username string, password string) (*User, error) {
	envelope, _, err := c.do(ctx, http.MethodPost, "/api/register", credentials{Username: username, Password: password}, "")
	if err != nil {
		return nil, err
	}
	return &envelope.User, nil
}

func (c *Client) Login(ctx context.Context, username string, password string) (*LoginResult, error) {
	envelope, resp, err := c.do(ctx, http.MethodPost, "/api/login", credentials{Username: username, Password: password}, "")
	if err != nil {
		return nil, err
	}

	result := &LoginResult{User: envelope.User, AccessToken: envelope.Token}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == httpapi.SessionCookieName {
			result.SessionToken = cookie.Value
		}
	}
	if result.SessionToken == "" {
		return nil, fmt.Errorf("login succeeded but no session cookie returned")
	}

	return result, nil
}

func (c *Client) Me(ctx context.Context, sessionToken string) (*User, error) {
	envelope, _, err := c.do(ctx, http.MethodGet, "/api/me", nil, sessionToken)
	if err != nil {
		return nil, err
	}
	return &envelope.User, nil
}

func (c *Client) Logout(ctx context.Context, sessionToken string) error {
	_, _, err := c.do(ctx, http.MethodPost, "/api/logout", nil, sessionToken)
	return err
}
