package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/workhub/backend/internal/lifecycle"
)

// Broadcaster доставляет событие подключённым клиентам пользователя.
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// HubSink раздаёт события жизненного цикла получателям через WebSocket
// хаб. Хаб сам сохраняет уведомление в БД для офлайн-пользователей.
type HubSink struct {
	hub Broadcaster
}

// NewHubSink создаёт сток событий поверх WebSocket-хаба.
func NewHubSink(hub Broadcaster) *HubSink {
	return &HubSink{hub: hub}
}

// Publish рассылает событие всем его получателям.
func (s *HubSink) Publish(ctx context.Context, event lifecycle.Event) error {
	var firstErr error
	for _, userID := range event.Recipients {
		if userID == uuid.Nil || userID == event.ActorID {
			continue
		}
		if err := s.hub.BroadcastToUser(userID, event.Type, event); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("events: broadcast %s to %s: %w", event.Type, userID, err)
		}
	}
	return firstErr
}
