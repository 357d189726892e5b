// Package msgtool is a thin HTTP client for a MsgTool messaging
// server, a lightweight internal chat service that complements mail.
// Authentication is per-request via X-User and X-Password headers.
package msgtool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultServerURL is used when neither the constructor argument nor
// the MSGTOOL_SERVER environment variable names a server.
const DefaultServerURL = "http://localhost:8900"

// Message is one message as the server reports it.
type Message struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Msg     string `json:"msg"`
	Time    string `json:"time,omitempty"`
	Unread  bool   `json:"unread,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// User is one registered account on the server.
type User struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

// Status is the generic acknowledgement most endpoints return.
type Status struct {
	OK     bool   `json:"ok,omitempty"`
	Status string `json:"status,omitempty"`
	ID     string `json:"id,omitempty"`
}

type messagesResponse struct {
	Messages []Message `json:"messages"`
}

type usersResponse struct {
	Users []User `json:"users"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client talks to one MsgTool server on behalf of one user.
type Client struct {
	serverURL  string
	user       string
	password   string
	httpClient *http.Client
}

// NewClient creates a client. Empty arguments fall back to the
// MSGTOOL_SERVER, MSG_USER, and MSG_PASSWORD environment variables,
// then to the local default server.
func NewClient(serverURL, user, password string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("MSGTOOL_SERVER")
	}
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	if user == "" {
		user = os.Getenv("MSG_USER")
	}
	if password == "" {
		password = os.Getenv("MSG_PASSWORD")
	}

	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		user:      user,
		password:  password,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) (Status, error) {
	var st Status
	err := c.get(ctx, "/health", nil, &st)
	return st, err
}

// Inbox lists received messages, optionally only unread ones.
func (c *Client) Inbox(
	ctx context.Context, unread bool, limit int,
) ([]Message, error) {
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	if unread {
		params.Set("unread", "1")
	}

	var resp messagesResponse
	if err := c.get(ctx, "/inbox", params, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Sent lists messages the user has sent.
func (c *Client) Sent(
	ctx context.Context, limit int,
) ([]Message, error) {
	params := url.Values{"limit": {strconv.Itoa(limit)}}

	var resp messagesResponse
	if err := c.get(ctx, "/sent", params, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Read fetches one message by id and marks it read on the server.
func (c *Client) Read(
	ctx context.Context, id string,
) (Message, error) {
	var msg Message
	err := c.get(ctx, "/read/"+url.PathEscape(id), nil, &msg)
	return msg, err
}

// Send delivers a message to another user. replyTo may be empty.
func (c *Client) Send(
	ctx context.Context, to, msg, replyTo string,
) (Status, error) {
	body := map[string]string{"to": to, "msg": msg}
	if replyTo != "" {
		body["reply_to"] = replyTo
	}

	var st Status
	err := c.post(ctx, "/send", body, &st)
	return st, err
}

// Reply answers an existing message by id.
func (c *Client) Reply(
	ctx context.Context, id, msg string,
) (Status, error) {
	var st Status
	err := c.post(ctx, "/reply", map[string]string{
		"id": id, "msg": msg,
	}, &st)
	return st, err
}

// Mentions lists messages that mention the user.
func (c *Client) Mentions(
	ctx context.Context, limit int,
) ([]Message, error) {
	params := url.Values{"limit": {strconv.Itoa(limit)}}

	var resp messagesResponse
	if err := c.get(ctx, "/mentions", params, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Notify polls the server for notification state.
func (c *Client) Notify(ctx context.Context) (Status, error) {
	var st Status
	err := c.get(ctx, "/notify", nil, &st)
	return st, err
}

// Users lists all registered users.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var resp usersResponse
	if err := c.get(ctx, "/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// Register creates a new account on the server.
func (c *Client) Register(
	ctx context.Context, username, password, displayName string,
) (Status, error) {
	var st Status
	err := c.post(ctx, "/register", map[string]string{
		"username":     username,
		"password":     password,
		"display_name": displayName,
	}, &st)
	return st, err
}

func (c *Client) get(
	ctx context.Context,
	path string,
	params url.Values,
	result interface{},
) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// do builds the request, attaches credentials, and decodes the JSON
// response. Error payloads from the server win over bare status codes.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(
		ctx, method, c.serverURL+path, bodyReader,
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("X-User", c.user)
	req.Header.Set("X-Password", c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var serverErr errorResponse
		if json.Unmarshal(respBody, &serverErr) == nil &&
			serverErr.Error != "" {
			return fmt.Errorf(
				"server error (%d) on %s %s: %s",
				resp.StatusCode, method, path, serverErr.Error,
			)
		}
		return fmt.Errorf(
			"unexpected status %d on %s %s: %s",
			resp.StatusCode, method, path, string(respBody),
		)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf(
			"unmarshaling response from %s %s: %w", method, path, err,
		)
	}

	return nil
}
