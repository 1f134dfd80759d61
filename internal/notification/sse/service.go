// Package sse provides Server-Sent Events support for real-time notifications.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"crm_pipeline_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventInAppNotification   EventType = "in_app_notification"
	EventPipelineInvalidated EventType = "pipeline_invalidated"
	EventPipelineFeedback    EventType = "pipeline_feedback"
)

// Event represents an SSE event payload
type Event struct {
	Type          EventType   `json:"type"`
	OpportunityID uuid.UUID   `json:"opportunityId,omitempty"`
	Message       string      `json:"message,omitempty"`
	Data          interface{} `json:"data,omitempty"`
}

// client represents a connected SSE client
type client struct {
	userID uuid.UUID
	events chan Event
}

// Service manages SSE connections and event broadcasting
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client // userID -> clients
	log     *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[uuid.UUID][]*client),
		log:     log,
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.userID] = append(s.clients[c.userID], c)
}

// removeClient unregisters a client connection. It is a no-op after Close.
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.userID] = append(clients[:i], clients[i+1:]...)
			if len(s.clients[c.userID]) == 0 {
				delete(s.clients, c.userID)
			}
			close(c.events)
			return
		}
	}
}

// Publish sends an event to every connection of one user.
func (s *Service) Publish(userID uuid.UUID, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.clients[userID] {
		s.offer(c, event)
	}
}

// Broadcast sends an event to every connected user.
func (s *Service) Broadcast(event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			s.offer(c, event)
		}
	}
}

// offer must be called with s.mu held.
func (s *Service) offer(c *client, event Event) {
	select {
	case c.events <- event:
	default:
		s.log.Warn("sse buffer full, event dropped", "userId", c.userID, "type", event.Type)
	}
}

// Subscribe registers a connection for userID and returns its event stream
// and a function that unregisters it.
func (s *Service) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	cl := &client{
		userID: userID,
		events: make(chan Event, 32),
	}
	s.addClient(cl)
	return cl.events, func() { s.removeClient(cl) }
}

// ConnectedUsers returns the number of users with at least one connection.
func (s *Service) ConnectedUsers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Handler returns a Gin handler for SSE connections
func (s *Service) Handler(getUserID func(*gin.Context) (uuid.UUID, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		stream, unsubscribe := s.Subscribe(userID)
		defer unsubscribe()

		c.SSEvent("connected", gin.H{"userId": userID})
		c.Writer.Flush()

		s.log.Debug("sse client connected", "userId", userID)

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse client disconnected", "userId", userID)
				return
			case event, ok := <-stream:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close disconnects every client.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
}
