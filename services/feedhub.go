package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
)

// feedTopics maps client-facing topic names to the NATS subjects carrying
// the matching lifecycle events
var feedTopics = map[string]string{
	"violations": SubjectViolations,
	"challans":   SubjectChallans,
}

// FeedHub fans review lifecycle events out to WebSocket dashboard clients
type FeedHub struct {
	natsConn *nats.Conn

	clients   map[*FeedClient]bool
	clientsMu sync.RWMutex

	// Topic subscriptions (topic -> subscription)
	subscriptions   map[string]*topicSubscription
	subscriptionsMu sync.RWMutex

	register   chan *FeedClient
	unregister chan *FeedClient
}

// topicSubscription tracks one topic's NATS subscription and its viewers
type topicSubscription struct {
	topic     string
	natsSub   *nats.Subscription
	viewers   map[*FeedClient]bool
	viewersMu sync.RWMutex
}

// FeedClient represents a WebSocket client watching review events
type FeedClient struct {
	hub        *FeedHub
	conn       *websocket.Conn
	send       chan []byte
	topics     map[string]bool
	topicsMu   sync.RWMutex
	userID     string
	remoteAddr string
}

// FeedMessage is a message sent to/from clients
type FeedMessage struct {
	Type  string          `json:"type"`  // subscribe, unsubscribe, event, ping
	Topic string          `json:"topic"` // violations, challans
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFeedHub creates a new feed hub
func NewFeedHub(natsConn *nats.Conn) *FeedHub {
	return &FeedHub{
		natsConn:      natsConn,
		clients:       make(map[*FeedClient]bool),
		subscriptions: make(map[string]*topicSubscription),
		register:      make(chan *FeedClient),
		unregister:    make(chan *FeedClient),
	}
}

// Register adds a client to the hub
func (h *FeedHub) Register(client *FeedClient) {
	h.register <- client
}

// Run starts the hub's main loop
func (h *FeedHub) Run() {
	log.Println("📺 Feed hub started")

	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			log.Printf("📺 Client connected: %s", client.remoteAddr)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()

			client.topicsMu.Lock()
			topics := make([]string, 0, len(client.topics))
			for topic := range client.topics {
				topics = append(topics, topic)
			}
			client.topics = make(map[string]bool)
			client.topicsMu.Unlock()
			for _, topic := range topics {
				h.unsubscribeClient(client, topic)
			}

			log.Printf("📺 Client disconnected: %s", client.remoteAddr)
		}
	}
}

// Subscribe subscribes a client to a review event topic
func (h *FeedHub) Subscribe(client *FeedClient, topic string) error {
	subject, ok := feedTopics[topic]
	if !ok {
		return fmt.Errorf("unknown topic: %s", topic)
	}

	h.subscriptionsMu.Lock()
	defer h.subscriptionsMu.Unlock()

	sub, exists := h.subscriptions[topic]
	if !exists {
		sub = &topicSubscription{
			topic:   topic,
			viewers: make(map[*FeedClient]bool),
		}

		natsSub, err := h.natsConn.Subscribe(subject, func(msg *nats.Msg) {
			h.broadcastEvent(topic, msg.Data)
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		sub.natsSub = natsSub

		h.subscriptions[topic] = sub
		log.Printf("📺 Created subscription for topic %s", topic)
	}

	sub.viewersMu.Lock()
	sub.viewers[client] = true
	sub.viewersMu.Unlock()

	client.topicsMu.Lock()
	client.topics[topic] = true
	client.topicsMu.Unlock()

	log.Printf("📺 Client %s subscribed to %s", client.remoteAddr, topic)
	return nil
}

// Unsubscribe removes a client from a topic
func (h *FeedHub) Unsubscribe(client *FeedClient, topic string) {
	client.topicsMu.Lock()
	delete(client.topics, topic)
	client.topicsMu.Unlock()

	h.unsubscribeClient(client, topic)
}

func (h *FeedHub) unsubscribeClient(client *FeedClient, topic string) {
	h.subscriptionsMu.Lock()
	defer h.subscriptionsMu.Unlock()

	sub, exists := h.subscriptions[topic]
	if !exists {
		return
	}

	sub.viewersMu.Lock()
	delete(sub.viewers, client)
	viewerCount := len(sub.viewers)
	sub.viewersMu.Unlock()

	// If no more viewers, drop the NATS subscription
	if viewerCount == 0 {
		if sub.natsSub != nil {
			sub.natsSub.Unsubscribe()
		}
		delete(h.subscriptions, topic)
		log.Printf("📺 Removed subscription for topic %s (no viewers)", topic)
	}
}

// broadcastEvent sends a review event to all viewers of a topic
func (h *FeedHub) broadcastEvent(topic string, eventData []byte) {
	h.subscriptionsMu.RLock()
	sub, exists := h.subscriptions[topic]
	h.subscriptionsMu.RUnlock()

	if !exists {
		return
	}

	msg := FeedMessage{
		Type:  "event",
		Topic: topic,
		Data:  eventData,
	}
	msgBytes, _ := json.Marshal(msg)

	sub.viewersMu.RLock()
	for client := range sub.viewers {
		select {
		case client.send <- msgBytes:
		default:
			// Client buffer full, skip
		}
	}
	sub.viewersMu.RUnlock()
}

// HubStats holds hub statistics
type HubStats struct {
	Clients       int      `json:"clients"`
	Subscriptions int      `json:"subscriptions"`
	ActiveTopics  []string `json:"activeTopics"`
}

func (h *FeedHub) Stats() HubStats {
	h.clientsMu.RLock()
	clientCount := len(h.clients)
	h.clientsMu.RUnlock()

	h.subscriptionsMu.RLock()
	topics := make([]string, 0, len(h.subscriptions))
	for key := range h.subscriptions {
		topics = append(topics, key)
	}
	h.subscriptionsMu.RUnlock()

	return HubStats{
		Clients:       clientCount,
		Subscriptions: len(topics),
		ActiveTopics:  topics,
	}
}
