// Package mongo persists a session's codelibrary.Library across an
// approval-paused session. Grounded on the memory store's client-wrapper
// pattern: an Options struct, a health.Pinger-compatible Client interface,
// and index creation inside the constructor.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"

	"github.com/fctr-id/okta-ai-agent/internal/codelibrary"
)

const (
	defaultCollection = "code_library"
	defaultTimeout     = 5 * time.Second
	clientName         = "codelibrary-mongo"
)

// Client exposes Mongo-backed persistence for a session's code library.
type Client interface {
	health.Pinger

	Load(ctx context.Context, sessionID string) (*codelibrary.Library, error)
	Save(ctx context.Context, lib *codelibrary.Library) error
}

// Options configures the Mongo client implementation.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type client struct {
	mongo   *mongodriver.Client
	coll    *mongodriver.Collection
	timeout time.Duration
}

// New returns a Client backed by the provided MongoDB client, ensuring the
// session-id index exists before returning.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, index); err != nil {
		return nil, err
	}

	return &client{mongo: opts.Client, coll: coll, timeout: timeout}, nil
}

func (c *client) Name() string { return clientName }

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

// Load fetches the stored library for sessionID, returning a fresh empty
// Library if none is stored yet.
func (c *client) Load(ctx context.Context, sessionID string) (*codelibrary.Library, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var lib codelibrary.Library
	err := c.coll.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&lib)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return codelibrary.New(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	if lib.ReadResults == nil {
		lib.ReadResults = make(map[string]codelibrary.ReadResult)
	}
	if lib.WriteScripts == nil {
		lib.WriteScripts = make(map[string]codelibrary.WriteScript)
	}
	if lib.Approvals == nil {
		lib.Approvals = make(map[string]codelibrary.Approval)
	}
	return &lib, nil
}

// Save upserts the full library document keyed on session id.
func (c *client) Save(ctx context.Context, lib *codelibrary.Library) error {
	if lib.SessionID == "" {
		return errors.New("session id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"session_id": lib.SessionID}
	update := bson.M{"$set": lib}
	_, err := c.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}
