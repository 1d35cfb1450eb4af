/*
Package chat contains the core logic for relaying chat messages between
connected clients and the text-generation backend.

This file defines the Client struct, representing one active WebSocket
connection. It owns the connection's whole lifecycle: admission (group
subscription, presence update, threshold notice), sequential inbound message
processing with persistence and the generation round-trip, and idempotent
teardown with symmetric presence/group cleanup.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatrelay/internal/app/store"
	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// timeout for presence and persistence side calls made during the
	// connection lifecycle.
	sideCallTimeout = 5 * time.Second

	// timeout for persisting a generation result. Deliberately detached from
	// the connection: the record is written even if the socket closed while
	// the backend call was in flight.
	persistTimeout = 10 * time.Second
)

// Client struct represents an active WebSocket connection and its associated identity.
type Client struct {
	// the hub this connection publishes to and receives from.
	hub *Hub

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// identity is the authenticated identity owning this connection, supplied
	// by the authentication collaborator and read-only here.
	identity user.Identity

	// services are the injected collaborators (presence, persistence, generation).
	services Services

	// settings holds the presence thresholds.
	settings Settings

	// topics records every topic this connection joined at admission, so
	// teardown removes exactly the memberships that were added.
	topics []string

	// a buffered channel used to queue messages waiting to be sent to the client.
	send chan []byte

	// cleanupOnce makes disconnect cleanup idempotent.
	cleanupOnce sync.Once

	// sendCloseOnce guards the close of the send channel.
	sendCloseOnce sync.Once

	// structured logger with client context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(hub *Hub, wsConn *websocket.Conn, identity user.Identity, services Services, settings Settings) *Client {
	clientLogger := logx.Logger().With().
		Str("client_id", identity.ID).
		Logger()

	return &Client{
		hub:      hub,
		conn:     wsConn,
		identity: identity,
		services: services,
		settings: settings,
		send:     make(chan []byte, 256),
		logger:   clientLogger,
	}
}

// Admit performs connection admission: it joins the identity's private topic
// and the shared broadcast topic, registers presence, acknowledges the client,
// and publishes an overload notice when presence has reached the high-water
// mark. The notice is level-triggered: every admission at or above the mark
// publishes one.
func (c *Client) Admit(ctx context.Context) {
	c.joinTopic(PrivateTopic(c.identity.ID))
	c.joinTopic(BroadcastTopic)

	addCtx, cancel := context.WithTimeout(ctx, sideCallTimeout)
	defer cancel()

	if err := c.services.Presence.Add(addCtx, c.identity.ID); err != nil {
		c.logger.Error().Err(err).Msg("Failed to register presence. Continuing admission.")
	}

	c.sendEvent(Event{
		Type:    EventSystem,
		Message: fmt.Sprintf("Connected as %s.", c.identity.Nickname),
	})

	count, err := c.services.Presence.Count(addCtx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to read presence cardinality at admission.")
		return
	}

	if count >= c.settings.HighWaterMark {
		c.logger.Info().Int("active_users", count).Msg("High-water mark reached, broadcasting overload notice.")
		c.hub.Publish(BroadcastTopic, Event{Type: EventBroadcast, Message: OverloadNotice})
	}
}

// joinTopic subscribes the connection to a topic and records the membership
// for teardown.
func (c *Client) joinTopic(topic string) {
	c.hub.Subscribe(topic, c)
	c.topics = append(c.topics, topic)
}

// ReadPump handles reading messages from the WebSocket connection.
// Inbound messages are processed strictly in arrival order, one at a time;
// the generation round-trip suspends only this connection's processing.
// Cleanup runs when the pump terminates for any reason.
func (c *Client) ReadPump() {
	defer c.Cleanup()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundMessage(messageBytes)
	}
}

// processInboundMessage runs the full per-message sequence: validate, persist,
// echo, generate, store the result, and fan the response out to the sending
// identity's private topic.
func (c *Client) processInboundMessage(messageBytes []byte) {
	var inbound struct {
		Message string `json:"message"`
	}

	// Malformed payloads and empty texts are dropped without a reply. This is
	// a deliberate leniency policy, not an error path.
	if err := json.Unmarshal(messageBytes, &inbound); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON, dropping.")
		return
	}

	text := strings.TrimSpace(inbound.Message)
	if text == "" {
		return
	}

	recordID := c.persistMessage(text)

	// Acknowledge receipt to the sending socket only. This confirms the text
	// was accepted, not that generation will succeed.
	c.sendEvent(Event{Type: EventUser, Message: text})

	result := <-c.services.Generation.Submit(context.Background(), text)

	response := result.Text
	if result.Err != nil {
		response = fmt.Sprintf("Error contacting OpenAI: %v", result.Err)
	}

	c.persistResponse(recordID, response)

	// Deliver to the private topic rather than this socket, so a user with
	// several open sessions sees the reply on all of them.
	c.hub.Publish(PrivateTopic(c.identity.ID), Event{Type: EventBot, Message: response})
}

// persistMessage creates the message record for a validated text and returns
// its ID, or "" when persistence failed. A persistence failure is scoped to
// this message; the connection keeps going.
func (c *Client) persistMessage(text string) string {
	ctx, cancel := context.WithTimeout(context.Background(), sideCallTimeout)
	defer cancel()

	recordID, err := c.services.Messages.CreateMessage(ctx, c.identity.ID, text)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to persist message record.")
		return ""
	}

	return recordID
}

// persistResponse stores the generation result (or its synthesized error
// text) on the record. The write is once-only; a second attempt is logged
// and discarded.
func (c *Client) persistResponse(recordID, response string) {
	if recordID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := c.services.Messages.SetResponse(ctx, recordID, response); err != nil {
		if errors.Is(err, store.ErrResponseAlreadySet) {
			c.logger.Warn().Str("record_id", recordID).Msg("Response already written for record, discarding.")
			return
		}
		c.logger.Error().Err(err).Str("record_id", recordID).Msg("Failed to persist generation response.")
	}
}

// Cleanup runs disconnect teardown exactly once, no matter how many paths
// reach it. Each step is best-effort and independent: a failure in one never
// prevents the others.
func (c *Client) Cleanup() {
	c.cleanupOnce.Do(func() {
		c.logger.Info().Msg("Client connection cleanup starting.")

		for _, topic := range c.topics {
			c.hub.Unsubscribe(topic, c)
		}
		c.hub.Detach(c)

		ctx, cancel := context.WithTimeout(context.Background(), sideCallTimeout)
		defer cancel()

		if err := c.services.Presence.Remove(ctx, c.identity.ID); err != nil {
			c.logger.Error().Err(err).Msg("Failed to remove presence entry. Continuing cleanup.")
		}

		count, err := c.services.Presence.Count(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Failed to read presence cardinality at teardown.")
		} else if count <= c.settings.LowWaterMark {
			c.logger.Info().Int("active_users", count).Msg("Low-water mark reached, broadcasting recovery notice.")
			c.hub.Publish(BroadcastTopic, Event{Type: EventBroadcast, Message: RecoveryNotice})
		}

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error")
		}
	})
}

// sendEvent marshals the event and queues it for this socket only.
func (c *Client) sendEvent(event Event) {
	messageBytes, err := json.Marshal(event)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling event for client")
		return
	}

	if !c.enqueue(messageBytes) {
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
	}
}

// enqueue places raw bytes on the send channel without blocking.
// It reports false when the channel is full.
func (c *Client) enqueue(messageBytes []byte) bool {
	select {
	case c.send <- messageBytes:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once. Only the Hub's run loop
// calls this, keeping the close serialized with deliveries.
func (c *Client) closeSend() {
	c.sendCloseOnce.Do(func() {
		close(c.send)
	})
}

// WritePump handles writing messages from the Client.send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage handles messages pulled from the send channel, writing them to the WebSocket.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
