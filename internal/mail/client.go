// ABOUTME: Microsoft Graph client for fetching messages and sending replies.
// ABOUTME: Handles the client-credentials token flow with caching and 401 retry.

package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oakmail/steward/internal/config"
)

const (
	defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"
	graphScope          = "https://graph.microsoft.com/.default"

	// Refresh a little before the advertised expiry.
	tokenExpirySlack = 60 * time.Second
)

// EmailMessage is the slice of a Graph message the run loop needs.
type EmailMessage struct {
	ID         string
	Subject    string
	BodyText   string
	BodyFormat string
	Sender     string
}

// Client fetches messages and sends replies for one target mailbox.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	tenantID     string
	clientID     string
	clientSecret string
	targetUser   string

	// Overridable for tests.
	baseURL  string
	tokenURL string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient builds a Graph client from the mail configuration.
func NewClient(cfg config.MailConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger.With("component", "mail"),
		tenantID:     cfg.TenantID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		targetUser:   cfg.TargetUser,
		baseURL:      defaultGraphBaseURL,
		tokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
	}
}

// FetchMessage retrieves one message from the target mailbox and
// normalizes its body to plain text.
func (c *Client) FetchMessage(ctx context.Context, messageID string) (*EmailMessage, error) {
	endpoint := fmt.Sprintf("/users/%s/messages/%s", url.PathEscape(c.targetUser), url.PathEscape(messageID))

	body, err := c.graphRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching message %s: %w", messageID, err)
	}

	var raw struct {
		ID      string `json:"id"`
		Subject string `json:"subject"`
		Body    struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		} `json:"body"`
		From struct {
			EmailAddress struct {
				Address string `json:"address"`
			} `json:"emailAddress"`
		} `json:"from"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding message %s: %w", messageID, err)
	}

	text := raw.Body.Content
	if strings.EqualFold(raw.Body.ContentType, "html") {
		text = HTMLToText(text)
	}
	text = Normalize(text)

	msg := &EmailMessage{
		ID:         raw.ID,
		Subject:    raw.Subject,
		BodyText:   text,
		BodyFormat: raw.Body.ContentType,
		Sender:     raw.From.EmailAddress.Address,
	}

	c.logger.Debug("fetched message",
		"message_id", messageID,
		"sender", msg.Sender,
		"body_len", len(msg.BodyText),
	)
	return msg, nil
}

// SendReply replies to a message with an HTML body.
func (c *Client) SendReply(ctx context.Context, messageID, htmlBody string) error {
	endpoint := fmt.Sprintf("/users/%s/messages/%s/reply", url.PathEscape(c.targetUser), url.PathEscape(messageID))

	payload := map[string]any{
		"message": map[string]any{
			"body": map[string]any{
				"contentType": "html",
				"content":     htmlBody,
			},
		},
	}
	if _, err := c.graphRequest(ctx, http.MethodPost, endpoint, payload); err != nil {
		return fmt.Errorf("replying to message %s: %w", messageID, err)
	}

	c.logger.Info("reply sent", "message_id", messageID)
	return nil
}

// SenderAllowed reports whether the sender address belongs to the
// allowed domain. An empty domain allows everyone.
func SenderAllowed(sender, allowedDomain string) bool {
	if allowedDomain == "" {
		return true
	}
	at := strings.LastIndex(sender, "@")
	if at < 0 {
		return false
	}
	return strings.EqualFold(sender[at+1:], allowedDomain)
}

// graphRequest performs one authenticated request against Graph,
// renewing the token once on 401.
func (c *Client) graphRequest(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	body, err := c.doGraphRequest(ctx, method, endpoint, payload, false)
	if err == errTokenExpired {
		c.logger.Debug("token rejected, renewing")
		body, err = c.doGraphRequest(ctx, method, endpoint, payload, true)
	}
	return body, err
}

var errTokenExpired = fmt.Errorf("access token expired")

func (c *Client) doGraphRequest(ctx context.Context, method, endpoint string, payload any, forceToken bool) ([]byte, error) {
	token, err := c.token(ctx, forceToken)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized && !forceToken:
		return nil, errTokenExpired
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("graph returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// token returns a cached access token, fetching a fresh one when the
// cache is empty, expired, or a renewal is forced.
func (c *Client) token(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {graphScope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &tokenResp); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access_token")
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - tokenExpirySlack)

	c.logger.Debug("access token obtained", "expires_in", tokenResp.ExpiresIn)
	return c.accessToken, nil
}
