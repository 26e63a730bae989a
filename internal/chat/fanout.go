package chat

import (
	"context"
	"sync"
)

// Subscriber receives encoded frames published to a topic.
type Subscriber interface {
	ID() string
	PrincipalID() string
	Deliver(frame []byte) error
}

// PublishOptions narrows delivery of a single publish.
type PublishOptions struct {
	// ExcludePrincipal skips every subscriber owned by this principal.
	ExcludePrincipal string
	// UnlessSubscribedTo skips subscribers whose principal also has a
	// subscription on this topic. Each instance decides from its own
	// subscriptions.
	UnlessSubscribedTo string
}

// Fanout delivers frames to the subscribers of a topic. Topics are plain
// strings; the gateway uses one per ticket room and one per principal.
type Fanout interface {
	Subscribe(topic string, sub Subscriber)
	Unsubscribe(topic, subscriberID string)
	Publish(ctx context.Context, topic string, frame []byte, opts PublishOptions) error
	Close() error
}

func ticketTopic(ticketID string) string { return "ticket:" + ticketID }

func userTopic(principalID string) string { return "user:" + principalID }

// LocalFanout delivers within the current process.
type LocalFanout struct {
	mu     sync.RWMutex
	topics map[string]map[string]Subscriber
}

// NewLocalFanout constructs an empty in-process fan-out.
func NewLocalFanout() *LocalFanout {
	return &LocalFanout{topics: make(map[string]map[string]Subscriber)}
}

// Subscribe adds sub to topic. Subscribing twice is idempotent.
func (f *LocalFanout) Subscribe(topic string, sub Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.topics[topic]
	if subs == nil {
		subs = make(map[string]Subscriber)
		f.topics[topic] = subs
	}
	subs[sub.ID()] = sub
}

// Unsubscribe removes the subscriber; empty topics are dropped.
func (f *LocalFanout) Unsubscribe(topic, subscriberID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.topics[topic]
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(f.topics, topic)
	}
}

// Publish delivers frame to every matching subscriber. Delivery errors belong
// to the individual subscriber and are not reported.
func (f *LocalFanout) Publish(_ context.Context, topic string, frame []byte, opts PublishOptions) error {
	f.mu.RLock()
	var present map[string]struct{}
	if opts.UnlessSubscribedTo != "" {
		present = make(map[string]struct{})
		for _, sub := range f.topics[opts.UnlessSubscribedTo] {
			present[sub.PrincipalID()] = struct{}{}
		}
	}
	targets := make([]Subscriber, 0, len(f.topics[topic]))
	for _, sub := range f.topics[topic] {
		if opts.ExcludePrincipal != "" && sub.PrincipalID() == opts.ExcludePrincipal {
			continue
		}
		if _, skip := present[sub.PrincipalID()]; skip {
			continue
		}
		targets = append(targets, sub)
	}
	f.mu.RUnlock()

	for _, sub := range targets {
		_ = sub.Deliver(frame)
	}
	return nil
}

// SubscriberCount returns the number of subscribers on topic.
func (f *LocalFanout) SubscriberCount(topic string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.topics[topic])
}

// Close drops all subscriptions.
func (f *LocalFanout) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = make(map[string]map[string]Subscriber)
	return nil
}
