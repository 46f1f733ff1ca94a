// Package gmail adapts the Gmail API to the verification mailbox port.
package gmail

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"memberverify/internal/verification/matcher"
)

const (
	userID      = "me"
	unreadLabel = "UNREAD"
)

var metadataHeaders = []string{"From", "To", "Subject", "Date"}

// Mailbox reads the intake inbox with an offline refresh token.
type Mailbox struct {
	svc *gmailapi.Service
}

// New builds a mailbox authorized by an OAuth2 refresh token.
func New(ctx context.Context, clientID, clientSecret, refreshToken string) (*Mailbox, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("gmail client id, secret and refresh token are required")
	}
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmailapi.GmailModifyScope},
	}
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewWithService(svc), nil
}

func NewWithService(svc *gmailapi.Service) *Mailbox {
	return &Mailbox{svc: svc}
}

// SearchQuery renders q in Gmail search syntax.
func SearchQuery(q matcher.Query) string {
	parts := []string{"from:@" + q.FromDomain}
	if q.To != "" {
		parts = append(parts, "to:"+q.To)
	}
	parts = append(parts, "is:unread")
	return strings.Join(parts, " ")
}

func (m *Mailbox) ListUnread(ctx context.Context, q matcher.Query) ([]string, error) {
	call := m.svc.Users.Messages.List(userID).Q(SearchQuery(q)).Context(ctx)
	if q.MaxResults > 0 {
		call = call.MaxResults(q.MaxResults)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

func (m *Mailbox) Fetch(ctx context.Context, id string) (*matcher.Message, error) {
	msg, err := m.svc.Users.Messages.Get(userID, id).
		Format("metadata").
		MetadataHeaders(metadataHeaders...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	out := &matcher.Message{ID: msg.Id, Snippet: msg.Snippet}
	if msg.Payload == nil {
		return out, nil
	}
	for _, h := range msg.Payload.Headers {
		switch {
		case strings.EqualFold(h.Name, "From"):
			out.From = h.Value
		case strings.EqualFold(h.Name, "To"):
			out.To = h.Value
		case strings.EqualFold(h.Name, "Subject"):
			out.Subject = h.Value
		case strings.EqualFold(h.Name, "Date"):
			out.Date = h.Value
		}
	}
	return out, nil
}

func (m *Mailbox) MarkRead(ctx context.Context, id string) error {
	_, err := m.svc.Users.Messages.Modify(userID, id, &gmailapi.ModifyMessageRequest{
		RemoveLabelIds: []string{unreadLabel},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("mark message %s read: %w", id, err)
	}
	return nil
}
