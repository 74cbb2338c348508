package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seovimalraj/locations/pkg/logger"
)

func TestEncodeCarriesHeaders(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-1")
	msg, err := encode(Event{Key: "seo", Type: "research.completed", Value: map[string]int{"keywords": 3}}, logger.RequestID(ctx))
	require.NoError(t, err)
	assert.Equal(t, []byte("seo"), msg.Key)
	assert.JSONEq(t, `{"keywords":3}`, string(msg.Value))

	env := decodeEnvelope(msg)
	assert.Equal(t, "research.completed", env.Type)
	assert.Equal(t, "req-1", env.RequestID)
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, err := encode(Event{Value: make(chan int)}, "")
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	v, err := DecodeJSON[map[string]string]([]byte(`{"a":"b"}`))
	require.NoError(t, err)
	assert.Equal(t, "b", v["a"])

	_, err = DecodeJSON[map[string]string]([]byte(`nope`))
	assert.ErrorContains(t, err, "decoding kafka message")

	assert.Empty(t, decodeEnvelope(kafka.Message{}).Type)
}
