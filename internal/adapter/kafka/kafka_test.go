package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })

	rec := domain.ICARecord{
		Region:  "colombia",
		Period:  domain.YearMonth{Year: 1998, Month: time.February},
		T90:     1.2,
		T10:     -0.4,
		Wind:    0.1,
		Rain:    math.NaN(),
		Drought: 0.3,
		ICA:     0.3,
	}

	msg, err := serializeToMessage(rec, "run-1")
	require.NoError(t, err)

	assert.Equal(t, []byte("colombia"), msg.Key)
	assert.Equal(t, time.Date(1998, 2, 1, 0, 0, 0, 0, time.UTC), msg.Time)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "period", msg.Headers[0].Key)
	assert.Equal(t, []byte("1998-02"), msg.Headers[0].Value)
	assert.Equal(t, []byte("run-1"), msg.Headers[1].Value)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Nil(t, body["rain"], "NaN is encoded as null")
	assert.InDelta(t, 1.2, body["t90"], 1e-12)
}

func TestWriteIndex_Empty(t *testing.T) {
	p := NewPublisher([]string{"localhost:1"}, "ica", "run", slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer p.Close()

	assert.NoError(t, p.WriteIndex(context.Background(), "colombia", nil))
	assert.NoError(t, p.WriteComponents(context.Background(), "colombia", nil))
}
