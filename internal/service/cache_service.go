package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/workhub/backend/internal/logger"
)

// CacheService — кэш на Redis с TTL и инвалидацией по префиксу.
// При nil клиенте все операции вырождаются в no-op, сервис деградирует
// до прямых чтений когда Redis не настроен.
type CacheService struct {
	client *redis.Client
}

// NewCacheService создаёт сервис кэширования. client может быть nil.
func NewCacheService(client *redis.Client) *CacheService {
	return &CacheService{client: client}
}

// Get читает значение из кэша и распаковывает его в dest.
func (cs *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if cs == nil || cs.client == nil {
		return false
	}

	data, err := cs.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// Устаревшая или несовместимая запись, удаляем.
		cs.client.Del(ctx, key)
		return false
	}
	return true
}

// Set сохраняет значение в кэш с TTL.
func (cs *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if cs == nil || cs.client == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := cs.client.Set(ctx, key, data, ttl).Err(); err != nil && logger.Log != nil {
		logger.Log.WithField("key", key).WithError(err).Debug("cache service: не удалось записать значение")
	}
}

// Delete удаляет ключ из кэша.
func (cs *CacheService) Delete(ctx context.Context, key string) {
	if cs == nil || cs.client == nil {
		return
	}
	cs.client.Del(ctx, key)
}

// InvalidateByPrefix удаляет все ключи с заданным префиксом.
func (cs *CacheService) InvalidateByPrefix(ctx context.Context, prefix string) {
	if cs == nil || cs.client == nil {
		return
	}

	iter := cs.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		cs.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil && logger.Log != nil {
		logger.Log.WithField("prefix", prefix).WithError(err).Debug("cache service: не удалось просканировать ключи")
	}
}

// InvalidateUserCache удаляет все записи кэша конкретного пользователя.
func (cs *CacheService) InvalidateUserCache(ctx context.Context, userID uuid.UUID) {
	cs.InvalidateByPrefix(ctx, "dashboard:"+userID.String())
	cs.InvalidateByPrefix(ctx, "stats:"+userID.String())
}

// InvalidateProjectCache удаляет записи, связанные с проектом, включая
// сводки участников, которые по нему агрегируются.
func (cs *CacheService) InvalidateProjectCache(ctx context.Context, projectID uuid.UUID) {
	cs.InvalidateByPrefix(ctx, "project:"+projectID.String())
	cs.InvalidateByPrefix(ctx, "dashboard:")
}

// Генераторы ключей кэша.
func DashboardCacheKey(userID uuid.UUID) string {
	return "dashboard:" + userID.String()
}

func StatsCacheKey(userID uuid.UUID) string {
	return "stats:" + userID.String()
}

// GetOrSet читает значение из кэша либо вычисляет и сохраняет его.
func (cs *CacheService) GetOrSet(
	ctx context.Context,
	key string,
	ttl time.Duration,
	dest interface{},
	fn func() (interface{}, error),
) error {
	if cs.Get(ctx, key, dest) {
		return nil
	}

	value, err := fn()
	if err != nil {
		return err
	}
	cs.Set(ctx, key, value, ttl)

	// Прогон через JSON выравнивает типизацию dest с путём попадания в кэш.
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
