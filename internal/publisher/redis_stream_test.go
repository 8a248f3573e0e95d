package publisher

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/dubs/internal/process"
)

func newPublisher(t *testing.T) (*RedisStreamPublisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStreamPublisher(client), client
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestPublishDailyRecords(t *testing.T) {
	ctx := context.Background()
	pub, client := newPublisher(t)

	table := &process.Table{
		Keywords: []string{"Adobe"},
		Records: []process.DailyRecord{
			{
				Date: day(1),
				Game: &process.Game{Date: day(1), Opponent: "Utah", Win: true, TeamScore: 110, OpponentScore: 100},
				Trends: process.TrendRow{Date: day(1), Values: map[string]process.TrendValues{
					"Adobe": {Raw: 4, Scaled: 4, Adjusted: math.NaN()},
				}},
			},
			{Date: day(2)},
		},
	}

	n, err := pub.PublishDailyRecords(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msgs, err := client.XRange(ctx, DailyStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	var first DailyEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &first))
	assert.Equal(t, "2024-01-01", first.Date)
	assert.Equal(t, "Utah", first.Opponent)
	require.NotNil(t, first.Values[process.ColPointDifference])
	assert.Equal(t, 10.0, *first.Values[process.ColPointDifference])
	assert.Equal(t, 4.0, *first.Values["Adobe"])
	assert.Nil(t, first.Values["Adobe_adjusted"])

	var second DailyEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[1].Values["data"].(string)), &second))
	assert.Nil(t, second.Values[process.ColWin], "no game means no result")
	assert.Empty(t, second.Opponent)
}

func TestPublishDailyRecordsEmpty(t *testing.T) {
	pub, _ := newPublisher(t)
	n, err := pub.PublishDailyRecords(context.Background(), &process.Table{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPublishRunSummary(t *testing.T) {
	ctx := context.Background()
	pub, client := newPublisher(t)

	require.NoError(t, pub.PublishRunSummary(ctx, RunSummary{RunID: "r1", Status: "completed", Games: 80}))

	msgs, err := client.XRange(ctx, RunStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got RunSummary
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got))
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 80, got.Games)
	assert.Contains(t, msgs[0].Values, "timestamp")
}
