package events

import (
	"context"

	"github.com/workhub/backend/internal/lifecycle"
	"github.com/workhub/backend/internal/logger"
)

// MultiSink доставляет событие каждому стоку. Сбой одного стока не
// мешает остальным: ошибка логируется и доставка продолжается.
type MultiSink struct {
	sinks []lifecycle.EventSink
}

// NewMultiSink собирает составной сток, пропуская nil-стоки.
func NewMultiSink(sinks ...lifecycle.EventSink) *MultiSink {
	out := make([]lifecycle.EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

// Publish рассылает событие по всем стокам.
func (m *MultiSink) Publish(ctx context.Context, event lifecycle.Event) error {
	for _, s := range m.sinks {
		if err := s.Publish(ctx, event); err != nil && logger.Log != nil {
			logger.Log.WithField("event_type", event.Type).WithError(err).Warn("events: сток не принял событие")
		}
	}
	return nil
}
