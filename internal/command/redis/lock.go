package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-songrequest/internal/logger"
)

// Redis serialises whole song submissions per requester: without the
// lock, two messages from the same viewer racing through separate
// consumers could both pass admission and double-spend one ticket.
type Redis struct {
	Client *redis.Client
	Log    *logger.Logger
}

func NewRedis(client *redis.Client, log *logger.Logger) *Redis {
	return &Redis{Client: client, Log: log}
}

// getSubmissionLockTTL returns the lock lease from the environment or
// the default. The lease only matters if a holder dies mid-submission.
func (r *Redis) getSubmissionLockTTL() time.Duration {
	defaultTTL := 30 * time.Second

	ttlStr := os.Getenv("SUBMISSION_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		r.Log.Warn("REDIS", "Invalid SUBMISSION_LOCK_TTL_SECONDS value '"+ttlStr+"', using default 30 seconds")
		return defaultTTL
	}
	return time.Duration(ttlSec) * time.Second
}

// LockRequester takes the submission lock for one requester. Returns
// false if another submission from the same requester is in flight.
func (r *Redis) LockRequester(ctx context.Context, requesterID string) (bool, error) {
	key := "submission_lock:" + requesterID
	ok, err := r.Client.SetNX(ctx, key, "1", r.getSubmissionLockTTL()).Result()
	return ok, err
}

// UnlockRequester releases the submission lock.
func (r *Redis) UnlockRequester(ctx context.Context, requesterID string) error {
	key := fmt.Sprintf("submission_lock:%s", requesterID)
	_, err := r.Client.Del(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released
	}
	return err
}
