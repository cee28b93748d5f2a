// Package gmail reads candidate messages from a Gmail mailbox.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/benvon/smart-todo-capture/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Config holds the mailbox credentials
type Config struct {
	// CredentialsFile is the OAuth client JSON downloaded from the Google console
	CredentialsFile string
	RefreshToken    string
	// User is the mailbox address, or "me"
	User string
}

// Client lists and fetches messages through the Gmail API
type Client struct {
	svc    *gmailapi.Service
	user   string
	logger *zap.Logger
}

// NewClient builds a Gmail client that refreshes its access token from cfg.RefreshToken
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.CredentialsFile == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("gmail credentials file and refresh token are required")
	}

	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read gmail credentials file %s: %w", cfg.CredentialsFile, err)
	}

	oauthCfg, err := google.ConfigFromJSON(b, gmailapi.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse gmail credentials: %w", err)
	}

	httpClient := oauthCfg.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create gmail service: %w", err)
	}

	return NewClientWithService(svc, cfg.User, logger), nil
}

// NewClientWithService wraps an existing service
func NewClientWithService(svc *gmailapi.Service, user string, logger *zap.Logger) *Client {
	if user == "" {
		user = "me"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{svc: svc, user: user, logger: logger}
}

// ListMessageIDs returns the ids of messages matching query
func (c *Client) ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error) {
	resp, err := c.svc.Users.Messages.List(c.user).Q(query).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list gmail messages: %w", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	c.logger.Debug("gmail_messages_listed", zap.String("query", query), zap.Int("count", len(ids)))
	return ids, nil
}

// GetMessage fetches one message with its decoded plain-text body
func (c *Client) GetMessage(ctx context.Context, id string) (*models.MailMessage, error) {
	msg, err := c.svc.Users.Messages.Get(c.user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get gmail message %s: %w", id, err)
	}
	return convertMessage(msg, c.user), nil
}

func convertMessage(msg *gmailapi.Message, user string) *models.MailMessage {
	out := &models.MailMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		URL:      fmt.Sprintf("https://mail.google.com/mail/u/%s/#inbox/%s", url.PathEscape(user), msg.Id),
	}
	if msg.Payload == nil {
		return out
	}
	out.Subject = header(msg.Payload.Headers, "Subject")
	out.From = header(msg.Payload.Headers, "From")
	out.Date = header(msg.Payload.Headers, "Date")
	if msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		out.Body = decodeBody(msg.Payload.Body.Data)
	} else {
		out.Body = findTextPart(msg.Payload.Parts)
	}
	return out
}

func header(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// findTextPart returns the first text/plain body in a multipart tree
func findTextPart(parts []*gmailapi.MessagePart) string {
	for _, p := range parts {
		if p.MimeType == "text/plain" && p.Body != nil && p.Body.Data != "" {
			return decodeBody(p.Body.Data)
		}
		if text := findTextPart(p.Parts); text != "" {
			return text
		}
	}
	return ""
}

func decodeBody(data string) string {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(b)
}
