package store

import (
	"context"

	"memberverify/internal/member/models"
)

// EventPublisher mirrors records to the event stream.
type EventPublisher interface {
	Publish(kind, key string, v any) bool
}

const streamKindVerificationEvent = "verification_event"

// PublishingDirectory mirrors committed verification events to the event
// stream. The wrapped directory remains the ledger; publishing is best effort.
type PublishingDirectory struct {
	Directory
	publisher EventPublisher
}

func NewPublishing(dir Directory, publisher EventPublisher) *PublishingDirectory {
	return &PublishingDirectory{Directory: dir, publisher: publisher}
}

func (d *PublishingDirectory) Update(ctx context.Context, id string, fn UpdateFunc) (*models.Member, error) {
	var committed []models.VerificationEvent
	m, err := d.Directory.Update(ctx, id, func(cur *models.Member) ([]models.VerificationEvent, error) {
		events, err := fn(cur)
		committed = events
		return events, err
	})
	if err != nil {
		return m, err
	}
	d.publish(committed...)
	return m, nil
}

func (d *PublishingDirectory) AppendEvent(ctx context.Context, event models.VerificationEvent) error {
	if err := d.Directory.AppendEvent(ctx, event); err != nil {
		return err
	}
	d.publish(event)
	return nil
}

func (d *PublishingDirectory) publish(events ...models.VerificationEvent) {
	for _, ev := range events {
		d.publisher.Publish(streamKindVerificationEvent, ev.MemberID, ev)
	}
}
