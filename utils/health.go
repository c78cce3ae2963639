package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthStatus is the latest probe of the engine's backing stores: the
// booking database, the availability cache, and the trainer-lock store.
type HealthStatus struct {
	Mongo     bool      `json:"mongo"`
	Cache     bool      `json:"cache"`
	Lock      bool      `json:"lock"`
	CheckedAt time.Time `json:"checkedAt"`
}

const (
	healthInterval = 60 * time.Second
	probeTimeout   = 5 * time.Second
)

var (
	currentHealth HealthStatus
	healthMu      sync.RWMutex
)

// GetHealthStatus returns the latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	healthMu.RLock()
	defer healthMu.RUnlock()
	return currentHealth
}

// StartHealthMonitor probes the cache, lock, and Mongo clients on a fixed
// interval and keeps the in-memory snapshot current.
func StartHealthMonitor(cache, lock *redis.Client, mongoClient *mongo.Client) {
	go func() {
		ticker := time.NewTicker(healthInterval)
		defer ticker.Stop()

		for range ticker.C {
			status := HealthStatus{
				Mongo:     probeMongo(mongoClient),
				Cache:     probeRedis(cache),
				Lock:      probeRedis(lock),
				CheckedAt: time.Now().UTC(),
			}

			healthMu.Lock()
			currentHealth = status
			healthMu.Unlock()
		}
	}()
}

func probeRedis(client *redis.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return client.Ping(ctx).Err() == nil
}

func probeMongo(client *mongo.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return client.Ping(ctx, nil) == nil
}
