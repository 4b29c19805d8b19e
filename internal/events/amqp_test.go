package events

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange = exchange
	f.key = key
	f.msg = msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPBridgeForwardsEvents(t *testing.T) {
	ch := &fakeChannel{}
	bridge := newAMQPBridge(ch, "courtclub.events", nil)
	bus := NewEventBus()
	bus.Subscribe(AllEvents, bridge.Forward)

	require.NoError(t, bus.PublishJSON(EventWaitlistJoined, map[string]string{"id": "wl-1"}))

	assert.Equal(t, "courtclub.events", ch.exchange)
	assert.Equal(t, EventWaitlistJoined, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.JSONEq(t, `{"id":"wl-1"}`, string(ch.msg.Body))
	assert.NotEmpty(t, ch.msg.MessageId)

	require.NoError(t, bridge.Close())
	assert.True(t, ch.closed)
}

func TestAMQPBridgeReturnsPublishError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	bridge := newAMQPBridge(ch, "x", nil)

	err := bridge.Forward(&Event{Type: EventMemberJoined, Payload: []byte(`{}`)})
	assert.Error(t, err)
}
