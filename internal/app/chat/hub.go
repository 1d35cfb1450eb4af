/*
Package chat contains the core logic for relaying chat messages between
connected clients and the text-generation backend.

This file defines the Hub, a generic topic-based publish/subscribe fabric.
Connections subscribe to named topics; publishing delivers the event to every
connection subscribed at that moment. The per-identity private topic and the
shared broadcast topic are two instances of this one mechanism. All mutations
flow through a single Run loop, which is what guarantees that per-topic
publish order matches each subscriber's receive order.
*/
package chat

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"chatrelay/internal/pkg/logx"
)

const publishChannelBuffer = 1024

type subscription struct {
	topic  string
	client *Client
}

type publication struct {
	topic string
	event Event
}

// Hub maps topic names to the set of currently subscribed clients and fans
// published events out to them.
type Hub struct {
	// topics stores the subscriber set per topic name.
	topics map[string]map[*Client]struct{}

	// mutation and publish requests, all handled by the Run loop.
	subscribe   chan subscription
	unsubscribe chan subscription
	detach      chan *Client
	publishCh   chan publication

	// stopChan signals the Run loop to terminate.
	stopChan chan struct{}

	// done is closed when the Run loop has exited; public methods use it to
	// avoid blocking on a stopped hub.
	done chan struct{}

	// wg waits for the Run loop during Shutdown.
	wg sync.WaitGroup

	// stopOnce makes Shutdown idempotent.
	stopOnce sync.Once

	// structured logger with Hub context.
	logger zerolog.Logger
}

// NewHub constructs a Hub and starts its Run loop.
func NewHub() *Hub {
	h := &Hub{
		topics:      make(map[string]map[*Client]struct{}),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		detach:      make(chan *Client),
		publishCh:   make(chan publication, publishChannelBuffer),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logx.Logger().With().Str("component", "Hub").Logger(),
	}

	h.wg.Add(1)
	go h.run()

	return h
}

// Subscribe adds the client to the topic's subscriber set.
func (h *Hub) Subscribe(topic string, client *Client) {
	select {
	case h.subscribe <- subscription{topic: topic, client: client}:
	case <-h.done:
	}
}

// Unsubscribe removes the client from the topic's subscriber set.
// Removing an absent membership is a no-op.
func (h *Hub) Unsubscribe(topic string, client *Client) {
	select {
	case h.unsubscribe <- subscription{topic: topic, client: client}:
	case <-h.done:
	}
}

// Detach removes the client from every topic and closes its send channel.
// The close happens inside the Run loop, serialized with deliveries, so no
// publish can race with it.
func (h *Hub) Detach(client *Client) {
	select {
	case h.detach <- client:
	case <-h.done:
	}
}

// Publish delivers the event to every client currently subscribed to the topic.
// Clients subscribing afterwards do not retroactively receive it.
func (h *Hub) Publish(topic string, event Event) {
	select {
	case h.publishCh <- publication{topic: topic, event: event}:
	case <-h.done:
	default:
		h.logger.Warn().Str("topic", topic).Msg("Publish channel full, dropping event.")
	}
}

// run is the main event loop of the Hub.
func (h *Hub) run() {
	defer func() {
		for _, subscribers := range h.topics {
			for client := range subscribers {
				client.closeSend()
			}
		}
		h.topics = nil

		close(h.done)
		h.wg.Done()

		h.logger.Info().Msg("Hub run loop stopped.")
	}()

	for {
		select {
		case sub := <-h.subscribe:
			subscribers, ok := h.topics[sub.topic]
			if !ok {
				subscribers = make(map[*Client]struct{})
				h.topics[sub.topic] = subscribers
			}
			subscribers[sub.client] = struct{}{}

			h.logger.Debug().
				Str("topic", sub.topic).
				Int("subscribers", len(subscribers)).
				Msg("Client subscribed.")

		case sub := <-h.unsubscribe:
			h.removeSubscriber(sub.topic, sub.client)

		case client := <-h.detach:
			for topic := range h.topics {
				h.removeSubscriber(topic, client)
			}
			client.closeSend()

		case pub := <-h.publishCh:
			h.deliver(pub)

		case <-h.stopChan:
			return
		}
	}
}

// removeSubscriber drops one membership and deletes the topic entry when empty.
func (h *Hub) removeSubscriber(topic string, client *Client) {
	subscribers, ok := h.topics[topic]
	if !ok {
		return
	}

	if _, member := subscribers[client]; !member {
		return
	}

	delete(subscribers, client)
	if len(subscribers) == 0 {
		delete(h.topics, topic)
	}

	h.logger.Debug().
		Str("topic", topic).
		Int("subscribers", len(subscribers)).
		Msg("Client unsubscribed.")
}

// deliver marshals the event once and enqueues it on every subscriber.
func (h *Hub) deliver(pub publication) {
	subscribers, ok := h.topics[pub.topic]
	if !ok || len(subscribers) == 0 {
		return
	}

	messageBytes, err := json.Marshal(pub.event)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", pub.topic).Msg("Error marshaling event for delivery.")
		return
	}

	for client := range subscribers {
		if !client.enqueue(messageBytes) {
			h.logger.Warn().
				Str("topic", pub.topic).
				Str("client_id", client.identity.ID).
				Msg("Client send channel full, dropping event for this client.")
		}
	}
}

// Shutdown stops the Run loop and waits for it to finish. All subscribed
// clients' send channels are closed, which terminates their WritePumps.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
	h.wg.Wait()

	h.logger.Info().Msg("Hub shutdown complete.")
}
