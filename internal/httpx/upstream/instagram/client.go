package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL    = "https://graph.instagram.com"
	defaultAPIVersion = "v21.0"
	defaultTimeout    = 15 * time.Second
)

// Client is an Instagram Graph API client for messaging and comments
type Client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// ClientOption is a function that configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithAPIVersion sets the API version
func WithAPIVersion(version string) ClientOption {
	return func(c *Client) {
		c.apiVersion = version
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a new Instagram API client
func New(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiVersion: defaultAPIVersion,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an error from the Instagram API
type APIError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
	FBTraceID    string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("instagram API error: %s (code: %d, subcode: %d)", e.Message, e.Code, e.ErrorSubcode)
}

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ============================================================================
// Messaging API
// ============================================================================

// SendMessageInput represents input for sending a direct message
type SendMessageInput struct {
	RecipientID string
	AccessToken string
	Text        string
}

// SendMessageOutput represents output from sending a direct message
type SendMessageOutput struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

type messageRecipient struct {
	ID        string `json:"id,omitempty"`
	CommentID string `json:"comment_id,omitempty"`
}

type messageBody struct {
	Text string `json:"text"`
}

type sendMessageRequest struct {
	Recipient messageRecipient `json:"recipient"`
	Message   messageBody      `json:"message"`
}

// SendMessage sends a text message through the standard messaging channel
// POST /me/messages
func (c *Client) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	endpoint := fmt.Sprintf("%s/%s/me/messages", c.baseURL, c.apiVersion)

	payload := sendMessageRequest{
		Recipient: messageRecipient{ID: in.RecipientID},
		Message:   messageBody{Text: in.Text},
	}

	var out SendMessageOutput
	if err := c.postJSON(ctx, endpoint, in.AccessToken, payload, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// SendPrivateReplyInput represents input for a private reply to a comment
type SendPrivateReplyInput struct {
	CommentID   string
	AccessToken string
	Text        string
}

// SendPrivateReply sends a one-time direct message in response to a public
// comment, addressed by comment id rather than recipient id. Bypasses the
// messaging window.
// POST /me/messages with recipient.comment_id
func (c *Client) SendPrivateReply(ctx context.Context, in SendPrivateReplyInput) (*SendMessageOutput, error) {
	endpoint := fmt.Sprintf("%s/%s/me/messages", c.baseURL, c.apiVersion)

	payload := sendMessageRequest{
		Recipient: messageRecipient{CommentID: in.CommentID},
		Message:   messageBody{Text: in.Text},
	}

	var out SendMessageOutput
	if err := c.postJSON(ctx, endpoint, in.AccessToken, payload, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// ============================================================================
// Comments API
// ============================================================================

// ReplyToCommentInput represents input for replying to a comment
type ReplyToCommentInput struct {
	CommentID   string
	AccessToken string
	Message     string
}

// ReplyToCommentOutput represents output from replying to a comment
type ReplyToCommentOutput struct {
	ID string `json:"id"`
}

// ReplyToComment posts a public reply to a comment
// POST /{comment-id}/replies
func (c *Client) ReplyToComment(ctx context.Context, in ReplyToCommentInput) (*ReplyToCommentOutput, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/replies", c.baseURL, c.apiVersion, in.CommentID)

	params := url.Values{}
	params.Set("access_token", in.AccessToken)
	params.Set("message", in.Message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var out ReplyToCommentOutput
	if err := c.do(req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// ============================================================================
// Users API
// ============================================================================

// GetUserInput represents input for fetching a user profile
type GetUserInput struct {
	UserID      string
	AccessToken string
}

// GetUserOutput represents a user profile from Instagram
type GetUserOutput struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// GetUser retrieves a user's username by id, used for display-name backfill
// GET /{user-id}?fields=username
func (c *Client) GetUser(ctx context.Context, in GetUserInput) (*GetUserOutput, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiVersion, in.UserID)

	params := url.Values{}
	params.Set("access_token", in.AccessToken)
	params.Set("fields", "username")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var out GetUserOutput
	if err := c.do(req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// postJSON sends a JSON body with a bearer token and decodes the response
func (c *Client) postJSON(ctx context.Context, endpoint, accessToken string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// do executes an HTTP request and decodes the response
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	// Check for error response
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
		}
		return &errResp.Error
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
