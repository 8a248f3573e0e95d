package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/dubs/internal/process"
)

// Stream names
const (
	DailyStream = "dubs.daily.combined"
	RunStream   = "dubs.runs"
)

// maxStreamLen caps each stream; trimming is approximate
const maxStreamLen = 10000

// RunSummary is published once per finished pipeline run
type RunSummary struct {
	RunID        string    `json:"run_id"`
	Status       string    `json:"status"`
	Message      string    `json:"message,omitempty"`
	Games        int       `json:"games"`
	Articles     int       `json:"articles"`
	ArticleDays  int       `json:"article_days"`
	TrendDays    int       `json:"trend_days"`
	CombinedDays int       `json:"combined_days"`
	FinishedAt   time.Time `json:"finished_at"`
}

// DailyEvent is the payload for one combined day
type DailyEvent struct {
	Date     string              `json:"date"`
	Opponent string              `json:"opponent,omitempty"`
	Values   map[string]*float64 `json:"values"`
}

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client}
}

// PublishDailyRecords appends every record of t to DailyStream in one pipeline
func (p *RedisStreamPublisher) PublishDailyRecords(ctx context.Context, t *process.Table) (int, error) {
	if t == nil || t.Len() == 0 {
		return 0, nil
	}

	columns := t.Columns()
	now := time.Now().Unix()
	pipe := p.client.Pipeline()
	for i := range t.Records {
		rec := &t.Records[i]
		event := DailyEvent{
			Date:   rec.Date.Format("2006-01-02"),
			Values: make(map[string]*float64, len(columns)),
		}
		if rec.Game != nil {
			event.Opponent = rec.Game.Opponent
		}
		for _, col := range columns {
			v, err := t.Value(rec, col)
			if err != nil {
				return 0, err
			}
			event.Values[col] = process.Nullable(v)
		}

		data, err := json.Marshal(event)
		if err != nil {
			return 0, fmt.Errorf("encoding %s: %w", event.Date, err)
		}
		pipe.XAdd(ctx, streamArgs(DailyStream, data, now))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("publishing daily records: %w", err)
	}
	return t.Len(), nil
}

// PublishRunSummary appends summary to RunStream
func (p *RedisStreamPublisher) PublishRunSummary(ctx context.Context, summary RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return p.client.XAdd(ctx, streamArgs(RunStream, data, time.Now().Unix())).Err()
}

func streamArgs(stream string, data []byte, ts int64) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": ts,
		},
	}
}
