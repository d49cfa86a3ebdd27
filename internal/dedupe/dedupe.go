// Package dedupe remembers keys in redis so webhook redeliveries are only
// handled once.
package dedupe

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const (
	defaultTTL    = 72 * time.Hour
	defaultPrefix = "lead-intake:"
	pingTimeout   = 5 * time.Second
)

// Guard claims keys with SET NX and a TTL.
type Guard struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	close  func() error
}

// New wraps an existing redis client. A ttl of zero uses 72 hours.
func New(rdb redis.Cmdable, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Guard{rdb: rdb, ttl: ttl, prefix: defaultPrefix, close: func() error { return nil }}
}

// Connect dials redisURL and verifies the connection.
func Connect(ctx context.Context, redisURL string, tlsInsecure bool, ttl time.Duration) (*Guard, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: parse redis url")
	}
	if tlsInsecure {
		if opts.TLSConfig == nil {
			opts.TLSConfig = &tls.Config{}
		}
		opts.TLSConfig.InsecureSkipVerify = true //nolint:gosec
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "dedupe: connect to redis")
	}

	g := New(client, ttl)
	g.close = client.Close
	return g, nil
}

// Claim records key and reports whether this call was the first to do so
// within the TTL.
func (g *Guard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, g.prefix+key, time.Now().UTC().Unix(), g.ttl).Result()
	if err != nil {
		return false, eris.Wrapf(err, "dedupe: claim %s", key)
	}
	return ok, nil
}

// Release forgets key so the next Claim succeeds.
func (g *Guard) Release(ctx context.Context, key string) error {
	if err := g.rdb.Del(ctx, g.prefix+key).Err(); err != nil {
		return eris.Wrapf(err, "dedupe: release %s", key)
	}
	return nil
}

// Ping checks the redis connection.
func (g *Guard) Ping(ctx context.Context) error {
	return eris.Wrap(g.rdb.Ping(ctx).Err(), "dedupe: ping")
}

// Close releases the connection opened by Connect.
func (g *Guard) Close() error {
	return g.close()
}
