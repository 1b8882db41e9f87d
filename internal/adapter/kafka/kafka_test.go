package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstlaur1/montreal-score/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestSerializeToMessage(t *testing.T) {
	appDate := "2024-01-10"
	p := domain.NormalizedPermit{
		ExternalID:        strPtr("3001234567"),
		PermitID:          strPtr("CO-2024-00042"),
		ApplicationDate:   &appDate,
		BoroughRaw:        "Sud-Ouest",
		BoroughNormalized: "Le Sud-Ouest",
	}

	msg, err := serializeToMessage(2024, p)
	require.NoError(t, err)

	assert.Equal(t, []byte("3001234567"), msg.Key)
	assert.Contains(t, string(msg.Value), `"application_date":"2024-01-10"`)
	assert.Contains(t, string(msg.Value), `"issue_date":null`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "borough", msg.Headers[0].Key)
	assert.Equal(t, []byte("Le Sud-Ouest"), msg.Headers[0].Value)
	assert.Equal(t, "year", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024"), msg.Headers[1].Value)
}

func TestSerializeToMessage_KeyFallback(t *testing.T) {
	t.Run("permit id when no application number", func(t *testing.T) {
		p := domain.NormalizedPermit{PermitID: strPtr("CO-1998-01234")}

		msg, err := serializeToMessage(1998, p)
		require.NoError(t, err)
		assert.Equal(t, []byte("CO-1998-01234"), msg.Key)
	})

	t.Run("null key when neither id present", func(t *testing.T) {
		msg, err := serializeToMessage(1998, domain.NormalizedPermit{})
		require.NoError(t, err)
		assert.Nil(t, msg.Key)
	})
}

func TestPublishPermits_EmptyBatch(t *testing.T) {
	w := &Writer{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	// No messages means no broker round trip; a nil underlying writer
	// must not be touched.
	require.NoError(t, w.PublishPermits(context.Background(), 2024, nil))
}
