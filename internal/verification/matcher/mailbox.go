package matcher

import "context"

// Query selects unread messages sent from the corporate domain to the intake address.
type Query struct {
	FromDomain string
	To         string
	MaxResults int64
}

// Message is the metadata of one inbound message. Bodies are never fetched.
type Message struct {
	ID      string
	From    string
	To      string
	Subject string
	Date    string
	Snippet string
}

// Mailbox is the inbox the matcher scans.
type Mailbox interface {
	ListUnread(ctx context.Context, q Query) ([]string, error)
	Fetch(ctx context.Context, id string) (*Message, error)
	MarkRead(ctx context.Context, id string) error
}
