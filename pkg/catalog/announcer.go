package catalog

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Announcement tells connected storefront clients about a new product.
type Announcement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

// NewAnnouncement builds the announcement for a freshly created product.
func NewAnnouncement(p *Product) Announcement {
	return Announcement{
		ID:          uuid.NewString(),
		Title:       p.Title,
		URL:         DetailsURL(p.ProductID),
		PublishedAt: time.Now().UTC(),
	}
}

// Announcer is the fire-and-forget broadcast invoked after a product is created.
type Announcer interface {
	Announce(ctx context.Context, a Announcement) error
}

// NopAnnouncer drops every announcement.
type NopAnnouncer struct{}

func (NopAnnouncer) Announce(context.Context, Announcement) error { return nil }

// PubsubAnnouncer publishes announcements as JSON to a Pub/Sub topic.
type PubsubAnnouncer struct {
	topic  *pubsub.Topic
	logger zerolog.Logger
}

// NewPubsubAnnouncer creates a publisher for topicID.
// It accepts a context to verify that the target topic exists before returning.
func NewPubsubAnnouncer(ctx context.Context, client *pubsub.Client, topicID string, logger zerolog.Logger) (*PubsubAnnouncer, error) {
	if client == nil {
		return nil, errors.New("pubsub client cannot be nil")
	}
	topic := client.Topic(topicID)

	// Verify the topic exists, respecting the context's deadline.
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check for topic %s", topicID)
	}
	if !exists {
		return nil, errors.Newf("pubsub topic %s does not exist", topicID)
	}

	return &PubsubAnnouncer{
		topic:  topic,
		logger: logger.With().Str("component", "PubsubAnnouncer").Str("topic_id", topicID).Logger(),
	}, nil
}

// Announce publishes a and waits for the server to acknowledge it.
// Callers run it off the request path.
func (p *PubsubAnnouncer) Announce(ctx context.Context, a Announcement) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "failed to marshal announcement")
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event":           "product_announcement",
			"announcement_id": a.ID,
		},
	})
	msgID, err := result.Get(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to publish announcement %s", a.ID)
	}
	p.logger.Info().Str("published_msg_id", msgID).Str("title", a.Title).Msg("Announcement sent successfully.")
	return nil
}

// Stop flushes any pending messages for the topic, respecting the context's timeout.
func (p *PubsubAnnouncer) Stop(ctx context.Context) error {
	if p.topic == nil {
		return nil
	}

	// topic.Stop() is blocking, so we wrap it to respect the context timeout.
	stopDone := make(chan struct{})
	go func() {
		p.topic.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
