package eventsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/trezcool/kujifunza/core"
)

// RedisPublisher publishes events as JSON on a redis pub/sub channel.
type RedisPublisher struct {
	rdb     *goredis.Client
	channel string
}

var _ core.EventPublisher = (*RedisPublisher)(nil)

func NewRedisPublisher(conf *core.Config) (*RedisPublisher, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        conf.Redis.Address,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return &RedisPublisher{rdb: rdb, channel: conf.Redis.Channel}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, events ...core.Event) error {
	if len(events) == 0 {
		return nil
	}
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, e := range events {
			raw, err := json.Marshal(e)
			if err != nil {
				return errors.Wrapf(err, "encoding %s event", e.Name)
			}
			pipe.Publish(ctx, p.channel, raw)
		}
		return nil
	})
	return errors.Wrap(err, "publishing events")
}

// Subscribe calls onEvent for every event published on the channel until ctx is done.
func (p *RedisPublisher) Subscribe(ctx context.Context, onEvent func(e core.Event)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return errors.Wrap(err, "redis subscribe")
	}

	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var e core.Event
				if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
					continue
				}
				onEvent(e)
			}
		}
	}()
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

// LogPublisher logs events; used when no redis is configured.
type LogPublisher struct {
	logger core.Logger
}

var _ core.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger core.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, events ...core.Event) error {
	for _, e := range events {
		p.logger.Debug("event "+e.Name, e.Data)
	}
	return nil
}
