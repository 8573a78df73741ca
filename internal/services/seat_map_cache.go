package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/booking-engine/internal/models"
	"golang.org/x/sync/singleflight"
)

// SeatMapCache keeps rendered seat maps in Redis for a short TTL and collapses
// concurrent misses for the same key into a single load. A nil client disables
// caching but still deduplicates loads.
//
// Keys carry a per travel option generation. Invalidate bumps the generation,
// so a load that read the seats before a mutation can only write under the
// old generation, which is never read again.
type SeatMapCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *logrus.Logger
}

// NewSeatMapCache creates a new SeatMapCache
func NewSeatMapCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *SeatMapCache {
	return &SeatMapCache{client: client, ttl: ttl, logger: logger}
}

// SeatMapGenerationKey holds the current cache generation of a travel option
func SeatMapGenerationKey(travelOptionID int64) string {
	return fmt.Sprintf("seatmap:%d:gen", travelOptionID)
}

// SeatMapKey returns the cache key of a travel option's seat map for a
// generation and mode ("" = option's own mode)
func SeatMapKey(travelOptionID, generation int64, mode string) string {
	if mode == "" {
		mode = "default"
	}
	return fmt.Sprintf("seatmap:%d:g%d:%s", travelOptionID, generation, mode)
}

// Get returns the cached seat map or calls load and caches its result.
// Cache failures are logged and fall through to load without caching.
func (c *SeatMapCache) Get(ctx context.Context, travelOptionID int64, mode string, load func(ctx context.Context) (*models.SeatMap, error)) (*models.SeatMap, error) {
	if c.client == nil {
		return c.load(ctx, SeatMapKey(travelOptionID, 0, mode), false, load)
	}

	generation, err := c.client.Get(ctx, SeatMapGenerationKey(travelOptionID)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		generation = 0
	case err != nil:
		c.logger.WithError(err).WithField("travel_option_id", travelOptionID).Warn("Seat map cache read failed")
		return c.load(ctx, SeatMapKey(travelOptionID, 0, mode), false, load)
	}

	key := SeatMapKey(travelOptionID, generation, mode)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached models.SeatMap
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			return &cached, nil
		}
		c.logger.WithField("key", key).Warn("Discarding undecodable cached seat map")
	case !errors.Is(err, redis.Nil):
		c.logger.WithError(err).WithField("key", key).Warn("Seat map cache read failed")
	}

	return c.load(ctx, key, true, load)
}

func (c *SeatMapCache) load(ctx context.Context, key string, cache bool, load func(ctx context.Context) (*models.SeatMap, error)) (*models.SeatMap, error) {
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		seatMap, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if cache {
			c.store(ctx, key, seatMap)
		}
		return seatMap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SeatMap), nil
}

func (c *SeatMapCache) store(ctx context.Context, key string, seatMap *models.SeatMap) {
	if c.client == nil || c.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(seatMap)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to encode seat map for cache")
		return
	}
	if err := c.client.SetEx(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Seat map cache write failed")
	}
}

// Invalidate moves a travel option to a new cache generation. Entries of
// older generations are never read again and expire with their TTL.
func (c *SeatMapCache) Invalidate(ctx context.Context, travelOptionID int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, SeatMapGenerationKey(travelOptionID)).Err(); err != nil {
		c.logger.WithError(err).WithField("travel_option_id", travelOptionID).Warn("Seat map cache invalidation failed")
	}
}
