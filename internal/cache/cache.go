// Package cache keeps the open-auction listing in Redis so that listing
// commands and the HTTP API do not scan the store on every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/discord-auction-bot/internal/auction"
	"github.com/jensholdgaard/discord-auction-bot/internal/config"
)

// Redis keys. The shared hash tag keeps both in one cluster slot.
const (
	DefaultKey           = "auctionbot:{auctions}:open"
	DefaultGenerationKey = "auctionbot:{auctions}:gen"
)

var _ auction.ListingCache = (*Listing)(nil)

// Listing implements auction.ListingCache on a Redis string holding JSON
// and a generation counter bumped by every invalidation.
type Listing struct {
	client redis.UniversalClient
	key    string
	genKey string
	ttl    time.Duration
	tracer trace.Tracer
}

// NewClient returns a Redis client for cfg. The caller owns it.
func NewClient(cfg config.CacheConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewListing returns a Listing whose entries expire after ttl.
func NewListing(client redis.UniversalClient, ttl time.Duration, tp trace.TracerProvider) *Listing {
	return &Listing{
		client: client,
		key:    DefaultKey,
		genKey: DefaultGenerationKey,
		ttl:    ttl,
		tracer: tp.Tracer("github.com/jensholdgaard/discord-auction-bot/internal/cache"),
	}
}

// Ping checks connectivity.
func (l *Listing) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Listing) Get(ctx context.Context) ([]auction.Summary, int64, bool, error) {
	ctx, span := l.tracer.Start(ctx, "Listing.Get", trace.WithAttributes(attribute.String("cache.key", l.key)))
	defer span.End()

	vals, err := l.client.MGet(ctx, l.key, l.genKey).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, false, fmt.Errorf("reading %s: %w", l.key, err)
	}
	gen, err := parseGeneration(vals[1])
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, false, err
	}
	span.SetAttributes(attribute.Int64("cache.generation", gen))

	data, ok := vals[0].(string)
	if !ok {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, gen, false, nil
	}
	var list []auction.Summary
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		// A payload we cannot read is a miss; the next Set replaces it.
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, gen, false, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", true), attribute.Int("cache.entries", len(list)))
	return list, gen, true, nil
}

// Set stores list if no invalidation happened since gen was read. A stale
// list is silently discarded.
func (l *Listing) Set(ctx context.Context, gen int64, list []auction.Summary) error {
	ctx, span := l.tracer.Start(ctx, "Listing.Set", trace.WithAttributes(
		attribute.String("cache.key", l.key),
		attribute.Int64("cache.generation", gen),
	))
	defer span.End()

	if list == nil {
		list = []auction.Summary{}
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding listing: %w", err)
	}

	stale := false
	err = l.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, l.genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		current, err := parseGeneration(cur)
		if err != nil {
			return err
		}
		if current != gen {
			stale = true
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, l.key, payload, l.ttl)
			return nil
		})
		return err
	}, l.genKey)
	switch {
	case errors.Is(err, redis.TxFailedErr):
		stale = true
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("writing %s: %w", l.key, err)
	}
	span.SetAttributes(attribute.Bool("cache.stale", stale))
	return nil
}

// Invalidate drops the listing and bumps the generation so that listings
// read before this call are not stored afterwards.
func (l *Listing) Invalidate(ctx context.Context) error {
	ctx, span := l.tracer.Start(ctx, "Listing.Invalidate", trace.WithAttributes(attribute.String("cache.key", l.key)))
	defer span.End()

	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, l.genKey)
		p.Del(ctx, l.key)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("invalidating %s: %w", l.key, err)
	}
	return nil
}

func parseGeneration(v any) (int64, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case string:
		if v == "" {
			return 0, nil
		}
		gen, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing listing generation %q: %w", v, err)
		}
		return gen, nil
	default:
		return 0, fmt.Errorf("unexpected listing generation %T", v)
	}
}
