// Package redis keeps each collection in a hash of id to JSON document, with
// a sorted set recording insertion order.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expensedash/internal/core"
	"expensedash/internal/store"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "expensedash:"

type Options struct {
	Address  string
	Password string
	DB       int
}

type Client struct {
	rdb *goredis.Client
}

var _ store.Gateway = (*Client)(nil)

// New connects to redis and pings it.
func New(ctx context.Context, opts Options) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: 10,
	})
	c := &Client{rdb: rdb}
	if err := c.Ping(ctx); err != nil {
		rdb.Close()
		return nil, err
	}
	return c, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb *goredis.Client) *Client {
	return &Client{rdb: rdb}
}

func docsKey(collection string) string  { return keyPrefix + collection + ":docs" }
func orderKey(collection string) string { return keyPrefix + collection + ":order" }

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return core.E(core.KindConnection, "redis.ping", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) FetchAll(ctx context.Context, collection string) ([]core.RawRecord, error) {
	ids, err := c.rdb.ZRange(ctx, orderKey(collection), 0, -1).Result()
	if err != nil {
		return nil, core.E(core.KindConnection, "redis.fetch_all", fmt.Errorf("read order: %w", err))
	}
	bodies, err := c.rdb.HGetAll(ctx, docsKey(collection)).Result()
	if err != nil {
		return nil, core.E(core.KindConnection, "redis.fetch_all", fmt.Errorf("read documents: %w", err))
	}

	out := make([]core.RawRecord, 0, len(bodies))
	seen := make(map[string]struct{}, len(ids))
	appendDoc := func(id, body string) {
		doc, err := store.DecodeDocument([]byte(body))
		if err != nil {
			slog.WarnContext(ctx, "Skipping undecodable document", "component", "store", "id", id, "error", err)
			return
		}
		out = append(out, core.RawRecord{ID: id, Fields: doc})
	}
	for _, id := range ids {
		if body, ok := bodies[id]; ok {
			appendDoc(id, body)
			seen[id] = struct{}{}
		}
	}
	// Documents written without an order entry still belong to the collection.
	for id, body := range bodies {
		if _, ok := seen[id]; !ok {
			appendDoc(id, body)
		}
	}
	return out, nil
}

func (c *Client) Insert(ctx context.Context, collection string, doc core.Document) (string, error) {
	body, err := store.EncodeDocument(doc)
	if err != nil {
		return "", core.E(core.KindWrite, "redis.insert", err)
	}
	id := uuid.NewString()
	_, err = c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, docsKey(collection), id, string(body))
		p.ZAdd(ctx, orderKey(collection), goredis.Z{Score: float64(time.Now().UnixNano()), Member: id})
		return nil
	})
	if err != nil {
		return "", core.E(core.KindWrite, "redis.insert", fmt.Errorf("store document: %w", err))
	}
	return id, nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) (bool, error) {
	var del *goredis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		del = p.HDel(ctx, docsKey(collection), id)
		p.ZRem(ctx, orderKey(collection), id)
		return nil
	})
	if err != nil {
		return false, core.E(core.KindWrite, "redis.delete", fmt.Errorf("delete document: %w", err))
	}
	return del.Val() > 0, nil
}
