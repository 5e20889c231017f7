package config

import (
	"os"
	"strings"
)

// ReconcilePubSubTrigger routes run processing through Pub/Sub push delivery
// instead of the in-process worker pool. Requires RECONCILE_SYNC_TOPIC and a
// push subscription pointed at /api/reconciliation/pubsub.
//
// Set via env:
// - RECONCILE_PUBSUB_TRIGGER=true
func ReconcilePubSubTrigger() bool {
	return envBool("RECONCILE_PUBSUB_TRIGGER")
}

// ReconcilePushEndpointEnabled gates the Pub/Sub push endpoint itself.
func ReconcilePushEndpointEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ENABLE_RECONCILE_PUBSUB_PUSH_ENDPOINT")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
