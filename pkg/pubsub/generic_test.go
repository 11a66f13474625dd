package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishKeepsLatestValue(t *testing.T) {
	ps := NewPubSub[int]()
	ch := ps.Subscribe("chat")

	ps.Publish("chat", 1)
	ps.Publish("chat", 2)
	ps.Publish("chat", 3)

	assert.Equal(t, 3, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected pending value %d", v)
	default:
	}
}

func TestPublishOnlyReachesTopic(t *testing.T) {
	ps := NewPubSub[string]()
	a := ps.Subscribe("a")
	b := ps.Subscribe("b")

	ps.Publish("a", "hello")

	assert.Equal(t, "hello", <-a)
	assert.Len(t, b, 0)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	ps := NewPubSub[int]()
	ch := ps.Subscribe("t")
	other := ps.Subscribe("t")
	require.Equal(t, 2, ps.Subscribers("t"))

	ps.Unsubscribe("t", ch)
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 1, ps.Subscribers("t"))

	ps.Publish("t", 7)
	assert.Equal(t, 7, <-other)

	ps.Close("t")
	_, ok = <-other
	assert.False(t, ok)
	assert.Equal(t, 0, ps.Subscribers("t"))
}
