package pubsubmutex

import (
	"errors"
	"sync"

	"github.com/cskr/pubsub"
)

// ErrNotRunning is returned when the hub is not started
var ErrNotRunning = errors.New("pubsub not running")

// PubSubMutex guards a pubsub instance that may be restarted
type PubSubMutex struct {
	pubsub   *pubsub.PubSub
	capacity int
	guard    sync.RWMutex
}

// New creates a stopped PubSubMutex, capacity is the per subscriber buffer
func New(capacity int) *PubSubMutex {
	return &PubSubMutex{
		capacity: capacity,
	}
}

// Start starts a fresh pubsub, closing any previous subscribers
func (p *PubSubMutex) Start() {
	p.guard.Lock()
	defer p.guard.Unlock()
	p.shutdown()
	p.pubsub = pubsub.New(p.capacity)
}

// Running returns whether the pubsub is started
func (p *PubSubMutex) Running() bool {
	p.guard.RLock()
	defer p.guard.RUnlock()
	return p.pubsub != nil
}

// Use calls callback with the running pubsub
func (p *PubSubMutex) Use(callback func(*pubsub.PubSub)) bool {
	p.guard.RLock()
	defer p.guard.RUnlock()
	if callback == nil || p.pubsub == nil {
		return false
	}
	callback(p.pubsub)
	return true
}

// Shutdown stops the pubsub and closes every subscriber
func (p *PubSubMutex) Shutdown() {
	p.guard.Lock()
	defer p.guard.Unlock()
	p.shutdown()
}

func (p *PubSubMutex) shutdown() {
	if p.pubsub != nil {
		p.pubsub.Shutdown()
		p.pubsub = nil
	}
}

// Publish sends msg to topics without blocking, full subscribers miss it
func (p *PubSubMutex) Publish(msg interface{}, topics ...string) bool {
	return p.Use(func(instance *pubsub.PubSub) {
		instance.TryPub(msg, topics...)
	})
}

// Subscription receives messages of type T
type Subscription[T any] struct {
	parent *PubSubMutex
	topics []string
	raw    chan interface{}
	out    chan T
	done   chan bool
	once   sync.Once
}

// Subscribe subscribes to topics, messages that are not a T are dropped
func Subscribe[T any](p *PubSubMutex, topics ...string) (*Subscription[T], error) {
	s := &Subscription[T]{
		parent: p,
		topics: topics,
		out:    make(chan T),
		done:   make(chan bool),
	}
	if !p.Use(func(instance *pubsub.PubSub) {
		s.raw = instance.Sub(topics...)
	}) {
		return nil, ErrNotRunning
	}
	go s.forward()
	return s, nil
}

func (s *Subscription[T]) forward() {
	defer close(s.out)
	for msg := range s.raw {
		v, ok := msg.(T)
		if !ok {
			continue
		}
		select {
		case s.out <- v:
		case <-s.done:
		}
	}
}

// C returns the receive channel, closed after Close or Shutdown
func (s *Subscription[T]) C() <-chan T {
	return s.out
}

// Close unsubscribes, safe to call more than once
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		close(s.done)
		// the pubsub closes raw once unsubscribed, forward keeps draining
		s.parent.Use(func(instance *pubsub.PubSub) {
			instance.Unsub(s.raw, s.topics...)
		})
	})
}
