package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCloudEvent(t *testing.T) {
	evt, err := NewCloudEvent("client-core", OrderSubmitted, map[string]any{
		"delivery_id": 101,
		"fee":         76.0,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, "client-core", evt.Source)
	assert.Equal(t, "1.0", evt.SpecVersion)
	assert.Equal(t, OrderSubmitted, evt.Type)
	assert.False(t, evt.Time.IsZero())

	var data map[string]any
	require.NoError(t, json.Unmarshal(evt.Data, &data))
	assert.EqualValues(t, 101, data["delivery_id"])
}

func TestNewCloudEventUnmarshalablePayload(t *testing.T) {
	_, err := NewCloudEvent("client-core", OrderSubmitted, make(chan int))
	assert.Error(t, err)
}

func TestNilProducerIsNoop(t *testing.T) {
	var p *Producer

	evt, err := NewCloudEvent("client-core", OrderCancelled, map[string]int{"delivery_id": 7})
	require.NoError(t, err)

	assert.NoError(t, p.PublishEvent(context.Background(), TopicOrderEvents, "7", evt))
	assert.NoError(t, p.Close())
}
