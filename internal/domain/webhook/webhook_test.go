package webhook

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createOutboundWebhook(t *testing.T) *Webhook {
	t.Helper()
	w, err := NewOutboundWebhook(
		uuid.New(), uuid.New(),
		"erp notifications",
		"https://erp.example.com/hooks/synchub",
		[]string{"sync.execution_completed", "conflict.raised"},
		AuthHMAC,
		uuid.New(),
	)
	require.NoError(t, err)
	return w
}

func TestNewOutboundWebhook(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		w := createOutboundWebhook(t)

		assert.Equal(t, StatusActive, w.Status)
		assert.Equal(t, DefaultSignatureHeader, w.SignatureHeader)
		assert.Equal(t, SignatureHMACSHA256, w.SignatureAlgorithm)
		assert.Equal(t, DefaultMaxRetries, w.MaxRetries)
		assert.True(t, w.Deliverable())
	})

	t.Run("requires target URL", func(t *testing.T) {
		_, err := NewOutboundWebhook(uuid.New(), uuid.New(), "x", "", []string{"a"}, AuthNone, uuid.Nil)
		assert.ErrorIs(t, err, ErrTargetURLRequired)
	})

	t.Run("requires subscribed events", func(t *testing.T) {
		_, err := NewOutboundWebhook(uuid.New(), uuid.New(), "x", "https://x.test", nil, AuthNone, uuid.Nil)
		assert.ErrorIs(t, err, ErrNoEvents)
	})
}

func TestNewInboundWebhook(t *testing.T) {
	t.Run("inbound needs no target URL", func(t *testing.T) {
		w, err := NewInboundWebhook(uuid.New(), uuid.New(), "odoo events", []string{"record.updated"}, uuid.New(), SignatureHMACSHA256)
		require.NoError(t, err)

		assert.Equal(t, DirectionInbound, w.Direction)
		assert.False(t, w.Deliverable())
	})

	t.Run("rejects unknown signature algorithm", func(t *testing.T) {
		_, err := NewInboundWebhook(uuid.New(), uuid.New(), "x", []string{"a"}, uuid.New(), SignatureAlgorithm("md5"))
		assert.ErrorIs(t, err, ErrInvalidSignatureAlgorithm)
	})
}

func TestWebhookSubscription(t *testing.T) {
	w := createOutboundWebhook(t)

	assert.True(t, w.SubscribesTo("sync.execution_completed"))
	assert.True(t, w.SubscribesTo("conflict.raised"))
	assert.False(t, w.SubscribesTo("sync.execution_failed"))

	w.Events = []string{"*"}
	assert.True(t, w.SubscribesTo("anything.at_all"))
}

func TestWebhookDeliveryAccounting(t *testing.T) {
	now := time.Now()

	t.Run("failure after exhausted retries moves to error", func(t *testing.T) {
		w := createOutboundWebhook(t)
		w.RecordDeliveryFailure(now, "503 from target")

		assert.Equal(t, StatusError, w.Status)
		assert.Equal(t, int64(1), w.FailureCount)
		assert.Equal(t, "503 from target", w.LastError)
	})

	t.Run("success recovers an errored channel", func(t *testing.T) {
		w := createOutboundWebhook(t)
		w.RecordDeliveryFailure(now, "boom")
		w.RecordDeliverySuccess(now)

		assert.Equal(t, StatusActive, w.Status)
		assert.Equal(t, int64(1), w.DeliveryCount)
		assert.Empty(t, w.LastError)
	})

	t.Run("paused channels are not deliverable", func(t *testing.T) {
		w := createOutboundWebhook(t)
		w.Pause()
		assert.False(t, w.Deliverable())

		w.Resume()
		assert.True(t, w.Deliverable())
	})
}

func TestDeliveryLogTruncation(t *testing.T) {
	w := createOutboundWebhook(t)

	long := make([]byte, responseBodyLimit*2)
	for i := range long {
		long[i] = 'x'
	}

	log := NewDeliveryLog(w, "sync.execution_completed", "evt-1", 1, "{}", 200, string(long), 35, true, "")
	assert.Len(t, log.ResponseBody, responseBodyLimit)
	assert.Equal(t, 1, log.Attempt)
	assert.True(t, log.Success)
}
