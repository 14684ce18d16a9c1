// Package notify enqueues notification tasks onto a redis stream consumed by
// the notification worker. The auth core only ever fires and forgets.
package notify

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const stream = "notifications:email"

type Queue struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewQueue(client *redis.Client, log zerolog.Logger) *Queue {
	return &Queue{client: client, log: log}
}

func (q *Queue) EnqueueVerificationEmail(ctx context.Context, userID string, email string) error {
	if q.client == nil {
		return nil
	}
	_, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"type":    "email_verification",
			"user_id": userID,
			"email":   email,
		},
	}).Result()
	if err == nil {
		q.log.Debug().Str("user_id", userID).Msg("verification email enqueued")
	}
	return err
}
