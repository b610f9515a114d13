// Package shop holds the storefront's business rules: checkout and cancellation,
// stock reservation, carts, the catalog and accounts. Services are built on a
// store.Datastore and never talk HTTP.
package shop

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"julianmorley.ca/con-plar/storefront/pkg/events"
	"julianmorley.ca/con-plar/storefront/pkg/models"
)

const tracerName = "julianmorley.ca/con-plar/storefront/pkg/shop"

// EventPublisher receives order events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, event events.OrderEvent) error
}

// ProductCache is a read-through cache in front of GetProduct.
type ProductCache interface {
	Get(ctx context.Context, id bson.ObjectID) (*models.Product, bool, error)
	Put(ctx context.Context, product *models.Product) error
	Invalidate(ctx context.Context, ids ...bson.ObjectID) error
}

type noCache struct{}

func (noCache) Get(context.Context, bson.ObjectID) (*models.Product, bool, error) {
	return nil, false, nil
}

func (noCache) Put(context.Context, *models.Product) error { return nil }

func (noCache) Invalidate(context.Context, ...bson.ObjectID) error { return nil }

type collaborators struct {
	events EventPublisher
	cache  ProductCache
}

type Option func(*collaborators)

func WithPublisher(p EventPublisher) Option {
	return func(c *collaborators) { c.events = p }
}

func WithProductCache(cache ProductCache) Option {
	return func(c *collaborators) { c.cache = cache }
}

func newCollaborators(opts []Option) collaborators {
	c := collaborators{events: events.Noop{}, cache: noCache{}}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// endSpan records err on span before ending it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// paged turns a page of rows into the list response shape.
func paged[T any](rows []T, page, limit int, total int64) *models.PagedResult[T] {
	if rows == nil {
		rows = []T{}
	}
	return &models.PagedResult[T]{Items: rows, Pagination: models.NewPagination(page, limit, total)}
}
