package audit

import "context"

// EventPublisher mirrors records to the event stream.
type EventPublisher interface {
	Publish(kind, key string, v any) bool
}

// PublishingStore mirrors appended entries to the event stream after they are
// persisted.
type PublishingStore struct {
	Store
	publisher EventPublisher
}

func NewPublishingStore(store Store, publisher EventPublisher) *PublishingStore {
	return &PublishingStore{Store: store, publisher: publisher}
}

func (s *PublishingStore) Append(ctx context.Context, entry Entry) error {
	if err := s.Store.Append(ctx, entry); err != nil {
		return err
	}
	s.publisher.Publish("audit_entry", entry.TargetID, entry)
	return nil
}
