package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	redisstore "github.com/opencliniq/triage/internal/store/redis"
)

// Case feed event types.
const (
	EventCaseCreated  = "case_created"
	EventCaseUpdated  = "case_updated"
	EventCaseReviewed = "case_reviewed"
	EventCaseDeleted  = "case_deleted"
)

// CaseEvent is a real-time triage-dashboard update. It carries identifiers
// only; clients refetch case details over the authenticated REST API.
type CaseEvent struct {
	Type   string    `json:"type"`
	CaseID uuid.UUID `json:"case_id"`
	At     time.Time `json:"at"`
}

// Hub bridges the Redis case feed to WebSocket clients.
type Hub struct {
	feed *redisstore.Client
}

func NewHub(feed *redisstore.Client) *Hub {
	return &Hub{feed: feed}
}

// ServeCases handles WebSocket connections for the live triage-case feed.
// Streams case change events to connected dashboard clients.
func (h *Hub) ServeCases(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	messages, cleanup, err := h.feed.Subscribe(ctx, redisstore.CaseFeedChannel)
	if err != nil {
		log.Error().Err(err).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}

// PublishCase sends a case event to the feed. Called by API handlers after
// mutating a case.
func (h *Hub) PublishCase(ctx context.Context, eventType string, caseID uuid.UUID) error {
	payload, err := json.Marshal(CaseEvent{
		Type:   eventType,
		CaseID: caseID,
		At:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("ws.Hub.PublishCase: marshal: %w", err)
	}

	if err := h.feed.Publish(ctx, redisstore.CaseFeedChannel, payload); err != nil {
		return fmt.Errorf("ws.Hub.PublishCase: %w", err)
	}

	return nil
}
