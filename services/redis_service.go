package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/redis/go-redis/v9"
)

const (
	ResultKeyPrefix = "execution_result:"
	ResultTTL       = 10 * time.Minute
)

// AsyncResult is the envelope published to Redis when a background
// execution completes
type AsyncResult struct {
	ExecutionID  int64                  `json:"executionId"`
	Status       string                 `json:"status"`
	Output       string                 `json:"output,omitempty"`
	Result       map[string]interface{} `json:"result,omitempty"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	DurationMs   int                    `json:"durationMs"`
}

type RedisService struct {
	client *redis.Client
}

func NewRedisService(host string, port int) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
	})
	return &RedisService{client: client}
}

// SetResult publishes a completed execution result with a TTL
func (r *RedisService) SetResult(ctx context.Context, result *AsyncResult) error {
	var err error
	xray.Capture(ctx, "Redis.Set", func(ctx1 context.Context) error {
		jsonData, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			err = marshalErr
			return marshalErr
		}
		key := fmt.Sprintf("%s%d", ResultKeyPrefix, result.ExecutionID)
		err = r.client.Set(ctx, key, jsonData, ResultTTL).Err()

		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddMetadata("redis.key", key)
			seg.AddMetadata("redis.operation", "SET")
		}

		return err
	})
	return err
}

// GetResult retrieves the published result for an execution id, nil when
// none has been published yet
func (r *RedisService) GetResult(ctx context.Context, executionID int64) (*AsyncResult, error) {
	var result *AsyncResult
	var finalErr error

	xray.Capture(ctx, "Redis.Get", func(ctx1 context.Context) error {
		key := fmt.Sprintf("%s%d", ResultKeyPrefix, executionID)
		jsonData, err := r.client.Get(ctx, key).Result()
		if err == redis.Nil {
			result = nil
			finalErr = nil
			return nil
		}
		if err != nil {
			finalErr = err
			return err
		}

		var async AsyncResult
		if err := json.Unmarshal([]byte(jsonData), &async); err != nil {
			finalErr = err
			return err
		}
		result = &async
		finalErr = nil

		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddMetadata("redis.key", key)
			seg.AddMetadata("redis.operation", "GET")
			seg.AddMetadata("redis.execution_id", executionID)
		}

		return nil
	})

	return result, finalErr
}

// Ping checks Redis connection
func (r *RedisService) Ping(ctx context.Context) error {
	var err error
	xray.Capture(ctx, "Redis.Ping", func(ctx1 context.Context) error {
		err = r.client.Ping(ctx).Err()

		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddMetadata("redis.operation", "PING")
		}

		return err
	})
	return err
}
