package reconcile

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vendhub/vendhub_backend/config"
)

// PublishRun pushes a run id onto the reconciliation topic. Used when
// RECONCILE_PUBSUB_TRIGGER routes processing through Pub/Sub push delivery
// instead of the in-process pool.
func PublishRun(ctx context.Context, runId uint) error {
	topicName := strings.TrimSpace(os.Getenv("RECONCILE_SYNC_TOPIC"))
	if topicName == "" {
		topicName = "reconcile-runs"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("RECONCILE_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	payload := RunPubSubPayload{
		RunId:         runId,
		CorrelationId: uuid.NewString(),
	}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler accepts Pub/Sub push deliveries. Always acks (204):
// processing failures are recorded on the run row, re-delivery would only
// hit the PENDING-status guard.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.ReconcilePushEndpointEnabled() {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload RunPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.RunId == 0 {
			c.Status(204)
			return
		}

		ProcessRun(c.Request.Context(), payload.RunId)
		c.Status(204)
	}
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
