package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSaver struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSaver) CreateNotification(ctx context.Context, userID uuid.UUID, event string, data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func TestHub_BroadcastToUser_SavesNotification(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(ctx)
	saver := &recordingSaver{}
	hub.SetNotificationSaver(saver)
	go hub.Run()

	err := hub.BroadcastToUser(uuid.New(), "proposal.accepted", map[string]string{"comment": "ок"})
	require.NoError(t, err)

	// Уведомление сохраняется в фоне, не блокируя доставку.
	assert.Eventually(t, func() bool {
		saver.mu.Lock()
		defer saver.mu.Unlock()
		return len(saver.events) == 1 && saver.events[0] == "proposal.accepted"
	}, time.Second, 10*time.Millisecond)
}

func TestEnvelope_Contract(t *testing.T) {
	raw, err := json.Marshal(Envelope{Type: "milestone.approved", Data: map[string]string{"milestoneId": "m1"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"milestone.approved","data":{"milestoneId":"m1"}}`, string(raw))
}
