package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/workhub/backend/internal/logger"
)

// SafeGo запускает горутину, паника внутри которой логируется,
// а не роняет процесс. Используется для фоновой публикации событий
// и инвалидации кэша.
func SafeGo(fn func()) {
	go func() {
		defer logRecovered()
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer logRecovered()
		fn(ctx)
	}()
}

func logRecovered() {
	if r := recover(); r != nil && logger.Log != nil {
		logger.Log.Errorf("паника в фоновой горутине: %v\n%s", r, debug.Stack())
	}
}
