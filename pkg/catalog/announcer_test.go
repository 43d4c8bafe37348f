package catalog_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/akashdube/PartsUL/pkg/catalog"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newPubsubClient(t *testing.T, ctx context.Context) *pubsub.Client {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPubsubAnnouncer_AnnounceAndStop(t *testing.T) {
	// --- Arrange ---
	testCtx, testCancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(testCancel)

	client := newPubsubClient(t, testCtx)
	topic, err := client.CreateTopic(testCtx, "announcements")
	require.NoError(t, err)
	sub, err := client.CreateSubscription(testCtx, "announcements-sub", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	announcer, err := catalog.NewPubsubAnnouncer(testCtx, client, "announcements", zerolog.Nop())
	require.NoError(t, err)

	// --- Act ---
	sent := catalog.NewAnnouncement(&catalog.Product{ProductID: 42, Title: "Fog light"})
	err = announcer.Announce(testCtx, sent)
	require.NoError(t, err)

	// --- Assert ---
	var mu sync.Mutex
	var receivedMsg *pubsub.Message
	receiveCtx, receiveCancel := context.WithCancel(testCtx)
	t.Cleanup(receiveCancel)

	go func() {
		err := sub.Receive(receiveCtx, func(ctx context.Context, msg *pubsub.Message) {
			mu.Lock()
			receivedMsg = msg
			mu.Unlock()
			msg.Ack()
			receiveCancel()
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Subscription receive error: %v", err)
		}
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return receivedMsg != nil
	}, 5*time.Second, 50*time.Millisecond, "did not receive announcement in time")

	mu.Lock()
	defer mu.Unlock()
	var got catalog.Announcement
	require.NoError(t, json.Unmarshal(receivedMsg.Data, &got))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, "Fog light", got.Title)
	assert.Equal(t, "/Store/Details/42", got.URL)
	assert.Equal(t, "product_announcement", receivedMsg.Attributes["event"])
	assert.Equal(t, sent.ID, receivedMsg.Attributes["announcement_id"])

	stopCtx, stopCancel := context.WithTimeout(testCtx, 2*time.Second)
	t.Cleanup(stopCancel)
	require.NoError(t, announcer.Stop(stopCtx))
}

func TestNewPubsubAnnouncer_TopicDoesNotExist(t *testing.T) {
	testCtx, testCancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(testCancel)
	client := newPubsubClient(t, testCtx)

	announcer, err := catalog.NewPubsubAnnouncer(testCtx, client, "missing-topic", zerolog.Nop())

	require.Error(t, err)
	assert.Nil(t, announcer)
	assert.Contains(t, err.Error(), "pubsub topic missing-topic does not exist")
}

func TestNewPubsubAnnouncer_NilClient(t *testing.T) {
	_, err := catalog.NewPubsubAnnouncer(context.Background(), nil, "any", zerolog.Nop())
	assert.Error(t, err)
}
