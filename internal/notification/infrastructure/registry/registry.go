// Package registry 维护收件人到实时连接的映射。
// 优先写入 Redis 以支持多实例部署，未配置 Redis 时退化为进程内映射。
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/pkg/logger"
)

const keyPrefix = "notification:conn:"

// ConnectionRegistry 连接注册表。
// 每个收件人最多保留一条连接，新连接覆盖旧连接。
type ConnectionRegistry struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.RWMutex
	local map[string]string
}

// New 创建连接注册表。client 为 nil 时使用进程内映射。
func New(client *redis.Client, ttl time.Duration) *ConnectionRegistry {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ConnectionRegistry{
		client: client,
		ttl:    ttl,
		local:  make(map[string]string),
	}
}

var _ domain.ConnectionRegistry = (*ConnectionRegistry)(nil)

// Bind 注册收件人当前的连接标识。
func (r *ConnectionRegistry) Bind(ctx context.Context, recipientID, connID string) error {
	if recipientID == "" || connID == "" {
		return errors.New("registry: recipient id and conn id are required")
	}

	if r.client != nil {
		if err := r.client.Set(ctx, keyPrefix+recipientID, connID, r.ttl).Err(); err != nil {
			logger.Error(ctx, "registry.Bind failed", "recipient_id", recipientID, "error", err)
			return err
		}
		return nil
	}

	r.mu.Lock()
	r.local[recipientID] = connID
	r.mu.Unlock()
	return nil
}

// Unbind 注销连接。只清除仍指向 connID 的映射，
// 避免误删同一收件人随后建立的新连接。
func (r *ConnectionRegistry) Unbind(ctx context.Context, recipientID, connID string) error {
	if r.client != nil {
		key := keyPrefix + recipientID
		current, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			logger.Error(ctx, "registry.Unbind failed", "recipient_id", recipientID, "error", err)
			return err
		}
		if current != connID {
			return nil
		}
		return r.client.Del(ctx, key).Err()
	}

	r.mu.Lock()
	if r.local[recipientID] == connID {
		delete(r.local, recipientID)
	}
	r.mu.Unlock()
	return nil
}

// Touch 刷新连接映射的过期时间，由心跳调用。
func (r *ConnectionRegistry) Touch(ctx context.Context, recipientID string) error {
	if r.client == nil {
		return nil
	}
	return r.client.Expire(ctx, keyPrefix+recipientID, r.ttl).Err()
}

// Resolve 实现 domain.ConnectionRegistry.Resolve。
// 收件人离线时返回 ok=false 且无错误。
func (r *ConnectionRegistry) Resolve(ctx context.Context, recipientID string) (string, bool, error) {
	if r.client != nil {
		connID, err := r.client.Get(ctx, keyPrefix+recipientID).Result()
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return connID, true, nil
	}

	r.mu.RLock()
	connID, ok := r.local[recipientID]
	r.mu.RUnlock()
	return connID, ok, nil
}
