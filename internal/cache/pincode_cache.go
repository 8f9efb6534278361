package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"leafline/internal/domain"
)

type Option func(*redis.Options)

func WithPassword(password string) Option {
	return func(o *redis.Options) {
		o.Password = password
	}
}

func WithDB(db int) Option {
	return func(o *redis.Options) {
		o.DB = db
	}
}

// Connect dials Redis and checks it answers.
func Connect(ctx context.Context, addr string, options ...Option) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	for _, option := range options {
		option(opts)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// PincodeCache keeps serviceable pincodes in Redis as JSON.
type PincodeCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPincodeCache(client *redis.Client, ttl time.Duration) *PincodeCache {
	return &PincodeCache{client: client, ttl: ttl}
}

func pincodeKey(pincode string) string { return "leafline:pincode:" + pincode }

func (c *PincodeCache) Get(ctx context.Context, pincode string) (domain.PincodeInfo, bool, error) {
	raw, err := c.client.Get(ctx, pincodeKey(pincode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PincodeInfo{}, false, nil
	}
	if err != nil {
		return domain.PincodeInfo{}, false, err
	}
	var info domain.PincodeInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return domain.PincodeInfo{}, false, fmt.Errorf("decode pincode %s: %w", pincode, err)
	}
	return info, true, nil
}

func (c *PincodeCache) Set(ctx context.Context, info domain.PincodeInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, pincodeKey(info.Pincode), raw, c.ttl).Err()
}
