package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MJE43/stake-roulette-sim/internal/simulation"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "roulette:progress"

// Publisher is the subset of *redis.Client the reporter needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Message is the JSON body published for every report.
type Message struct {
	Session string `json:"session,omitempty"`
	simulation.Progress
}

// Redis publishes progress as JSON on a pub/sub channel.
type Redis struct {
	pub     Publisher
	channel string
	session string
}

// NewRedis returns a reporter publishing through pub.
func NewRedis(pub Publisher, channel, session string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{pub: pub, channel: channel, session: session}
}

// Connect opens a client and checks it with PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("progress: redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// Report implements simulation.Reporter.
func (r *Redis) Report(ctx context.Context, p simulation.Progress) error {
	payload, err := json.Marshal(Message{Session: r.session, Progress: p})
	if err != nil {
		return fmt.Errorf("progress: encode: %w", err)
	}
	if err := r.pub.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("progress: publish: %w", err)
	}
	return nil
}
