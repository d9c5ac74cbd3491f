package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessage(t *testing.T) {
	at := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	msg := buildMessage("weather/202401", []byte("raw feed text"), at)

	assert.Equal(t, []byte("weather/202401"), msg.Key)
	assert.Equal(t, []byte("raw feed text"), msg.Value)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "source", msg.Headers[0].Key)
	assert.Equal(t, []byte("weather-collector"), msg.Headers[0].Value)
	assert.Equal(t, "collected_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-01-01T15:00:00Z"), msg.Headers[1].Value)
}

func TestBuildMessage_TimestampNormalizedToUTC(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	msg := buildMessage("k", nil, time.Date(2024, 1, 2, 0, 30, 0, 0, kst))

	assert.Equal(t, []byte("2024-01-01T15:30:00Z"), msg.Headers[1].Value)
}
