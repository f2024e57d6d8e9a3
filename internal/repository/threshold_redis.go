package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisThresholdStore shares the last-known-good anomaly thresholds between
// agent replicas. The four fields live in one hash and are written with a
// single HSET so readers never see a partial update.
type RedisThresholdStore struct {
	client *redis.Client
	key    string
}

func NewRedisThresholdStore(client *redis.Client, key string) *RedisThresholdStore {
	if key == "" {
		key = "attestgate:thresholds"
	}
	return &RedisThresholdStore{client: client, key: key}
}

// Load returns the stored thresholds. ok is false when nothing was stored yet.
func (s *RedisThresholdStore) Load(ctx context.Context) (model.AnomalyThresholds, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return model.AnomalyThresholds{}, false, err
	}
	if len(fields) == 0 {
		return model.AnomalyThresholds{}, false, nil
	}

	var t model.AnomalyThresholds
	targets := map[string]*float64{
		"trade_amount":         &t.TradeAmount,
		"price_deviation":      &t.PriceDeviation,
		"trade_frequency":      &t.TradeFrequency,
		"volatility_threshold": &t.VolatilityThreshold,
	}
	for name, dst := range targets {
		raw, ok := fields[name]
		if !ok {
			return model.AnomalyThresholds{}, false, fmt.Errorf("thresholds hash missing %s", name)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.AnomalyThresholds{}, false, fmt.Errorf("thresholds hash %s: %w", name, err)
		}
		*dst = v
	}
	return t, true, nil
}

func (s *RedisThresholdStore) Save(ctx context.Context, t model.AnomalyThresholds) error {
	return s.client.HSet(ctx, s.key, map[string]interface{}{
		"trade_amount":         strconv.FormatFloat(t.TradeAmount, 'f', -1, 64),
		"price_deviation":      strconv.FormatFloat(t.PriceDeviation, 'f', -1, 64),
		"trade_frequency":      strconv.FormatFloat(t.TradeFrequency, 'f', -1, 64),
		"volatility_threshold": strconv.FormatFloat(t.VolatilityThreshold, 'f', -1, 64),
	}).Err()
}

func (s *RedisThresholdStore) Reset(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
