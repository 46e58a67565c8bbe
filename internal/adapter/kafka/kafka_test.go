package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
)

func testRecord() domain.TriggerRecord {
	gloMax := 3500.0
	return domain.TriggerRecord{
		RunID:          "run-1",
		MonitoringDate: time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC),
		Level:          domain.LevelActivation,
		GloFASExceeds:  true,
		Triggered:      true,
		GloFASMax:      &gloMax,
		Thresholds:     domain.DefaultActivationThresholds(),
		RowCount:       12,
		EvaluatedAt:    time.Date(2024, 9, 10, 6, 0, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	rec := testRecord()

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("2024-09-10"), msg.Key)
	assert.Contains(t, string(msg.Value), `"triggered":true`)
	assert.Contains(t, string(msg.Value), `"glofas_max":3500`)
	assert.NotContains(t, string(msg.Value), "google_max")
	require.Len(t, msg.Headers, 4)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[0].Value)
	assert.Equal(t, "level", msg.Headers[1].Key)
	assert.Equal(t, []byte("activation"), msg.Headers[1].Value)
	assert.Equal(t, "status", msg.Headers[2].Key)
	assert.Equal(t, []byte("ACTIVATED"), msg.Headers[2].Value)
	assert.Equal(t, "evaluated_at", msg.Headers[3].Key)
	assert.Equal(t, []byte("2024-09-10T06:00:00Z"), msg.Headers[3].Value)
}

func TestDecodeTrigger_RoundTrip(t *testing.T) {
	rec := testRecord()
	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	got, err := DecodeTrigger(msg)
	require.NoError(t, err)
	assert.Equal(t, rec.RunID, got.RunID)
	assert.True(t, rec.MonitoringDate.Equal(got.MonitoringDate))
	assert.Equal(t, rec.Thresholds, got.Thresholds)
	require.NotNil(t, got.GloFASMax)
	assert.Equal(t, 3500.0, *got.GloFASMax)
	assert.Nil(t, got.GoogleMax)
}

func TestDecodeTrigger_Invalid(t *testing.T) {
	_, err := DecodeTrigger(kafkago.Message{Value: []byte("{not json")})
	require.Error(t, err)
}
