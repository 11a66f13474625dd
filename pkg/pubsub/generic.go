package pubsub

import (
	"sync"
)

// PubSub fans values out to the subscribers of a topic. Subscribers only
// ever see the latest value: a value that was not read yet is replaced by the
// next one published to the same topic, so a slow reader never blocks
// publishers.
type PubSub[T any] struct {
	mu   sync.Mutex
	subs map[string][]chan T
}

func NewPubSub[T any]() *PubSub[T] {
	return &PubSub[T]{
		subs: make(map[string][]chan T),
	}
}

func (ps *PubSub[T]) Subscribe(topic string) <-chan T {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ch := make(chan T, 1)
	ps.subs[topic] = append(ps.subs[topic], ch)
	return ch
}

// Unsubscribe removes ch from topic and closes it.
func (ps *PubSub[T]) Unsubscribe(topic string, ch <-chan T) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	subs := ps.subs[topic]
	for i, sub := range subs {
		if sub == ch {
			close(sub)
			ps.subs[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(ps.subs[topic]) == 0 {
		delete(ps.subs, topic)
	}
}

// Close drops every subscriber of topic, closing their channels.
func (ps *PubSub[T]) Close(topic string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, ch := range ps.subs[topic] {
		close(ch)
	}
	delete(ps.subs, topic)
}

func (ps *PubSub[T]) Publish(topic string, data T) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, ch := range ps.subs[topic] {
		// drop the pending value, if any; only publishers send and they hold mu
		select {
		case <-ch:
		default:
		}
		ch <- data
	}
}

// Subscribers returns the number of subscribers of topic.
func (ps *PubSub[T]) Subscribers(topic string) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.subs[topic])
}
