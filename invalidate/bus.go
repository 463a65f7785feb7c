package invalidate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/dashquery/cache"
	"github.com/jonwraymond/dashquery/observe"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "dashquery:invalidate"

// ErrInvalidMessage indicates a payload that is not an invalidation.
var ErrInvalidMessage = errors.New("invalidate: invalid message")

// Target is the cache a bus applies invalidations to. *query.Client
// satisfies it.
type Target interface {
	Invalidate(key cache.Key) bool
	InvalidatePrefix(prefix cache.Key) int
}

// Targets applies every invalidation to each of its members.
type Targets []Target

// Invalidate evicts key from every member and reports whether any held it.
func (ts Targets) Invalidate(key cache.Key) bool {
	evicted := false
	for _, t := range ts {
		if t.Invalidate(key) {
			evicted = true
		}
	}
	return evicted
}

// InvalidatePrefix evicts prefix from every member and returns the total.
func (ts Targets) InvalidatePrefix(prefix cache.Key) int {
	n := 0
	for _, t := range ts {
		n += t.InvalidatePrefix(prefix)
	}
	return n
}

// Message is one invalidation on the wire.
type Message struct {
	Key cache.Key `json:"key"`
	// Prefix evicts every key under Key instead of Key alone.
	Prefix bool `json:"prefix,omitempty"`
	// Origin identifies the publishing bus so it can skip its own echo.
	Origin string `json:"origin"`
}

// Encode returns the JSON payload for m.
func (m Message) Encode() (string, error) {
	if m.Key.IsZero() {
		return "", fmt.Errorf("%w: empty key", ErrInvalidMessage)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a payload produced by Encode.
func Decode(payload string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.Key.IsZero() {
		return Message{}, fmt.Errorf("%w: empty key", ErrInvalidMessage)
	}
	return m, nil
}

// Apply evicts the message's keys from target and returns how many entries
// were removed.
func (m Message) Apply(target Target) int {
	if m.Prefix {
		return target.InvalidatePrefix(m.Key)
	}
	if target.Invalidate(m.Key) {
		return 1
	}
	return 0
}

// Config configures a RedisBus.
type Config struct {
	// Channel defaults to DefaultChannel.
	Channel string

	// Origin identifies this process. Default: a random token.
	Origin string

	// Logger defaults to a no-op logger.
	Logger observe.Logger
}

// RedisBus publishes and applies invalidations over a Redis channel.
type RedisBus struct {
	client  *redis.Client
	target  Target
	channel string
	origin  string
	logger  observe.Logger
}

// NewRedisClient creates a Redis client for the bus.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisBus creates a bus that applies received invalidations to target.
func NewRedisBus(client *redis.Client, target Target, cfg Config) (*RedisBus, error) {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Origin == "" {
		origin, err := newOrigin()
		if err != nil {
			return nil, err
		}
		cfg.Origin = origin
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &RedisBus{
		client:  client,
		target:  target,
		channel: cfg.Channel,
		origin:  cfg.Origin,
		logger:  cfg.Logger,
	}, nil
}

// Origin returns the token this bus stamps on its messages.
func (b *RedisBus) Origin() string {
	return b.origin
}

// Invalidate evicts key locally and tells the other processes to do the
// same.
func (b *RedisBus) Invalidate(ctx context.Context, key cache.Key) error {
	return b.publish(ctx, Message{Key: key, Origin: b.origin})
}

// InvalidatePrefix evicts every key under prefix locally and remotely.
func (b *RedisBus) InvalidatePrefix(ctx context.Context, prefix cache.Key) error {
	return b.publish(ctx, Message{Key: prefix, Prefix: true, Origin: b.origin})
}

func (b *RedisBus) publish(ctx context.Context, m Message) error {
	payload, err := m.Encode()
	if err != nil {
		return err
	}
	m.Apply(b.target)
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("invalidate: publish %s: %w", m.Key, err)
	}
	return nil
}

// Run subscribes to the channel and applies messages until ctx ends.
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("invalidate: subscribe %s: %w", b.channel, err)
	}
	b.logger.Info(ctx, "invalidation bus subscribed", observe.F("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(ctx, msg.Payload)
		}
	}
}

// handle applies one received payload, skipping messages this bus sent.
func (b *RedisBus) handle(ctx context.Context, payload string) int {
	m, err := Decode(payload)
	if err != nil {
		b.logger.Warn(ctx, "dropping invalidation", observe.F("error", err))
		return 0
	}
	if m.Origin == b.origin {
		return 0
	}
	n := m.Apply(b.target)
	b.logger.Debug(ctx, "applied invalidation",
		observe.F("key", m.Key.String()),
		observe.F("prefix", m.Prefix),
		observe.F("evicted", n),
	)
	return n
}

// Ping checks the Redis connection.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func newOrigin() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
