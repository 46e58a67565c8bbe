//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/nga-flood-trigger/internal/adapter/kafka"
	"github.com/couchcryptid/nga-flood-trigger/internal/adapter/store"
	"github.com/couchcryptid/nga-flood-trigger/internal/config"
	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
	"github.com/couchcryptid/nga-flood-trigger/internal/observability"
	"github.com/couchcryptid/nga-flood-trigger/internal/pipeline"
)

const testTriggerTopic = "test-nga-flood-triggers"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("nga-flood-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestPipelinePublishesTrigger runs one monitoring cycle against a sqlite store
// and reads the published trigger record back from Kafka.
func TestPipelinePublishesTrigger(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTriggerTopic)

	cfg := &config.Config{
		KafkaBrokers:      []string{broker},
		KafkaTriggerTopic: testTriggerTopic,
	}

	st, err := store.New("sqlite", "file:"+filepath.Join(t.TempDir(), "integration.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Init(ctx))

	day := time.Date(2024, time.September, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveForecasts(ctx, []domain.ForecastRow{
		{MonitoringDate: day, Source: domain.SourceGloFASForecast, Station: "wuroboki", IssuedTime: day, ValidTime: day.AddDate(0, 0, 3), Value: 3400},
		{MonitoringDate: day, Source: domain.SourceGoogle, Station: "hybas_1120842550", IssuedTime: day, ValidTime: day.AddDate(0, 0, 1), Value: 900},
	}))

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(nil, st, writer, pipeline.Options{
		Level:      domain.LevelActivation,
		Thresholds: domain.DefaultActivationThresholds(),
		Interval:   time.Hour,
	}, discardLogger(), observability.NewMetricsForTesting())

	rec, err := p.RunOnce(ctx, day)
	require.NoError(t, err)
	assert.True(t, rec.Triggered)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testTriggerTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from trigger topic")

	assert.Equal(t, "2024-09-10", string(msg.Key))
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, rec.RunID, headers["run_id"])
	assert.Equal(t, "ACTIVATED", headers["status"])

	got, err := kafka.DecodeTrigger(msg)
	require.NoError(t, err)
	assert.Equal(t, rec.RunID, got.RunID)
	assert.True(t, got.GloFASExceeds)
	assert.False(t, got.GoogleExceeds)
	assert.Equal(t, 2, got.RowCount)

	latest, err := st.LatestTrigger(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec.RunID, latest.RunID)
}
