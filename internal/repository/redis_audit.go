package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	defaultAuditListKey = "audit_logs"
	defaultAuditListMax = 10000
	maxAuditPage        = 1000
)

// RedisAuditRepo keeps capped newest-first lists of audit entries: one for
// all services (listKey) and one per service (listKey:<service>).
type RedisAuditRepo struct {
	client  *redis.Client
	listKey string
	listMax int64
}

func NewRedisAuditRepo(client *redis.Client, listKey string, listMax int) *RedisAuditRepo {
	if listKey == "" {
		listKey = defaultAuditListKey
	}
	if listMax <= 0 {
		listMax = defaultAuditListMax
	}
	return &RedisAuditRepo{client: client, listKey: listKey, listMax: int64(listMax)}
}

func (r *RedisAuditRepo) serviceKey(service string) string {
	if service == "" {
		return r.listKey
	}
	return r.listKey + ":" + service
}

func (r *RedisAuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}

	keys := []string{r.listKey}
	if entry.Service != "" {
		keys = append(keys, r.serviceKey(entry.Service))
	}
	pipe := r.client.TxPipeline()
	for _, key := range keys {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, r.listMax-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push audit entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. Time filters are applied
// while scanning, so a narrow window over a long list may return fewer rows
// than exist.
func (r *RedisAuditRepo) List(ctx context.Context, service string, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if limit <= 0 || limit > maxAuditPage {
		limit = 100
	}
	scan := int64(limit)
	if from != nil || to != nil {
		scan = r.listMax
	}

	items, err := r.client.LRange(ctx, r.serviceKey(service), 0, scan-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read audit list: %w", err)
	}
	results := make([]*model.AuditLog, 0, min(limit, len(items)))
	for _, raw := range items {
		var entry model.AuditLog
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if from != nil && entry.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && entry.CreatedAt.After(*to) {
			continue
		}
		results = append(results, &entry)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
