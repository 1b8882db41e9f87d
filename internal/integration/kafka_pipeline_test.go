//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstlaur1/montreal-score/internal/adapter/ckan"
	"github.com/mstlaur1/montreal-score/internal/adapter/filestore"
	kafkaadapter "github.com/mstlaur1/montreal-score/internal/adapter/kafka"
	"github.com/mstlaur1/montreal-score/internal/config"
	"github.com/mstlaur1/montreal-score/internal/domain"
	"github.com/mstlaur1/montreal-score/internal/observability"
	"github.com/mstlaur1/montreal-score/internal/pipeline"
)

const testTopic = "test-permits"

// publishedMessage holds a deserialized message read from the permits topic.
type publishedMessage struct {
	Permit  domain.NormalizedPermit
	Key     string
	Headers map[string]string
	Raw     []byte
}

// readPublished reads a single message from the consumer and deserializes it.
func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from permits topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var permit domain.NormalizedPermit
	require.NoError(t, json.Unmarshal(msg.Value, &permit), "unmarshal permit message")

	return publishedMessage{
		Permit:  permit,
		Key:     string(msg.Key),
		Headers: headers,
		Raw:     msg.Value,
	}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestWriterPublishesPermits verifies the writer round-trips normalized
// permits through Kafka with the application number as the key and the
// borough and year as headers.
func TestWriterPublishesPermits(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testTopic,
	}

	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	// Run real raw records through normalization so the published payloads
	// match production output.
	issued := domain.ProcessPermit(domain.RawRecord{
		"no_demande":     "3001111111",
		"date_debut":     "2024-01-10",
		"date_emission":  "2024-03-20",
		"arrondissement": "Côte-des-Neiges—Notre-Dame-de-Grâce",
	})
	pending := domain.ProcessPermit(domain.RawRecord{
		"no_demande":     "3002222222",
		"date_debut":     "2024-02-01",
		"arrondissement": "Verdun",
	})

	require.NoError(t, writer.PublishPermits(ctx, 2024, []domain.NormalizedPermit{issued, pending}))

	consumer := newConsumer(t, broker)

	received := map[string]publishedMessage{}
	for i := 0; i < 2; i++ {
		msg := readPublished(ctx, t, consumer)
		received[msg.Key] = msg
	}
	require.Len(t, received, 2)

	first, ok := received["3001111111"]
	require.True(t, ok, "message keyed by application number")
	assert.Equal(t, "Côte-des-Neiges-Notre-Dame-de-Grâce", first.Headers["borough"])
	assert.Equal(t, "2024", first.Headers["year"])
	require.NotNil(t, first.Permit.ProcessingDays)
	assert.Equal(t, 70, *first.Permit.ProcessingDays)
	require.NotNil(t, first.Permit.IssueDate)
	assert.Equal(t, "2024-03-20", *first.Permit.IssueDate)

	second, ok := received["3002222222"]
	require.True(t, ok)
	assert.Equal(t, "Verdun", second.Headers["borough"])
	assert.Nil(t, second.Permit.IssueDate)
	assert.Contains(t, string(second.Raw), `"issue_date":null`, "pending permits keep explicit nulls")
}

// TestPipelineEndToEnd wires the full pipeline (CKAN source → normalization →
// snapshots → Kafka publisher) against a stub datastore and real Kafka.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	datastore := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/datastore_search_sql", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"success": true,
			"result": {
				"total": 3,
				"records": [
					{"no_demande": "3001000001", "date_debut": "2024-01-10", "date_emission": "2024-03-20", "arrondissement": "Plateau-Mont-Royal"},
					{"no_demande": "3001000002", "date_debut": "2024-02-01", "arrondissement": "Verdun"},
					{"no_demande": "3001000003", "arrondissement": "Verdun"}
				]
			}
		}`)
	}))
	t.Cleanup(datastore.Close)

	cfg := &config.Config{
		CKANBaseURL:    datastore.URL,
		CKANResourceID: "test-resource",
		HTTPTimeout:    30 * time.Second,
		PageSize:       100,
		RateLimitRPS:   1000,
		RateBurst:      100,
		KafkaBrokers:   []string{broker},
		KafkaTopic:     testTopic,
		PublishEnabled: true,
	}

	metrics := observability.NewMetricsForTesting()
	source := ckan.NewClient(cfg, discardLogger(), metrics)

	outDir := t.TempDir()
	store := filestore.NewStore(outDir, discardLogger(), metrics)

	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(source, store, writer, nil, discardLogger(), metrics)

	manifest, err := p.Run(ctx, pipeline.Options{Years: []int{2024}})
	require.NoError(t, err)

	require.Len(t, manifest.Years, 1)
	assert.Equal(t, 3, manifest.Years[0].RawRecords)
	assert.Equal(t, 2, manifest.Years[0].Processed)
	assert.Equal(t, 1, manifest.Years[0].Dropped)

	// Snapshots exist on disk.
	for _, name := range []string{
		filepath.Join("raw", "permits_2024.json"),
		"permits_2024_processed.json",
		"borough_stats_2024.json",
		"ingest_manifest.json",
	} {
		_, statErr := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, statErr, name)
	}

	// Both kept permits were published.
	consumer := newConsumer(t, broker)
	received := map[string]publishedMessage{}
	for i := 0; i < 2; i++ {
		msg := readPublished(ctx, t, consumer)
		received[msg.Key] = msg
	}

	plateau, ok := received["3001000001"]
	require.True(t, ok)
	assert.Equal(t, "Le Plateau-Mont-Royal", plateau.Headers["borough"])
	assert.Equal(t, "Le Plateau-Mont-Royal", plateau.Permit.BoroughNormalized)

	verdun, ok := received["3001000002"]
	require.True(t, ok)
	assert.Nil(t, verdun.Permit.IssueDate)
}
