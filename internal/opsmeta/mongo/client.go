// Package mongo is the operational metadata store's persistence layer:
// sync history, local users, and session rows. Grounded on the session
// store's client-wrapper pattern (Options struct, health.Pinger-shaped
// Client, index creation in the constructor).
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/fctr-id/okta-ai-agent/internal/opsmeta"
)

const (
	defaultSyncCollection    = "sync_history"
	defaultUsersCollection   = "local_users"
	defaultSessionCollection = "sessions"
	defaultTimeout           = 5 * time.Second
	clientName               = "opsmeta-mongo"
)

// Client is an alias for opsmeta.Client: the mongo package implements the
// store's interface rather than declaring its own.
type Client = opsmeta.Client

// Options configures the Mongo client implementation.
type Options struct {
	Client            *mongodriver.Client
	Database          string
	SyncCollection    string
	UsersCollection   string
	SessionCollection string
	Timeout           time.Duration
}

type client struct {
	mongo    *mongodriver.Client
	syncs    *mongodriver.Collection
	users    *mongodriver.Collection
	sessions *mongodriver.Collection
	timeout  time.Duration
}

// New returns a Client backed by MongoDB, creating the sync history
// indices documented in the store's schema: (tenant, status) and
// (tenant, start_time DESC).
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	syncColl := firstNonEmpty(opts.SyncCollection, defaultSyncCollection)
	usersColl := firstNonEmpty(opts.UsersCollection, defaultUsersCollection)
	sessColl := firstNonEmpty(opts.SessionCollection, defaultSessionCollection)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	db := opts.Client.Database(opts.Database)
	syncs := db.Collection(syncColl)
	users := db.Collection(usersColl)
	sessions := db.Collection(sessColl)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := syncs.Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "started_at", Value: -1}}},
	}); err != nil {
		return nil, err
	}
	if _, err := users.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, err
	}

	return &client{mongo: opts.Client, syncs: syncs, users: users, sessions: sessions, timeout: timeout}, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func (c *client) Name() string { return clientName }

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
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

// CreateSync inserts a new running sync row and returns its generated id.
func (c *client) CreateSync(ctx context.Context, tenantID string, kind opsmeta.SyncKind) (string, error) {
	if tenantID == "" {
		return "", errors.New("tenant id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	row := opsmeta.SyncRow{
		ID:              bson.NewObjectID().Hex(),
		TenantID:        tenantID,
		Kind:            kind,
		Status:          opsmeta.SyncStatusRunning,
		StartedAt:       time.Now().UTC(),
		EntityCounts:    map[string]int{},
		PercentComplete: 0,
	}
	if _, err := c.syncs.InsertOne(ctx, row); err != nil {
		return "", err
	}
	return row.ID, nil
}

// UpdateSync applies patch to the sync row identified by id. Patches are
// written at well-defined checkpoints (after teams, apps, people, and
// final validation).
func (c *client) UpdateSync(ctx context.Context, id string, patch opsmeta.SyncPatch) error {
	if id == "" {
		return errors.New("sync id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	set := bson.M{}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.EndedAt != nil {
		set["ended_at"] = patch.EndedAt.UTC()
	}
	if patch.EntityCounts != nil {
		set["entity_counts"] = patch.EntityCounts
	}
	if patch.PercentComplete != nil {
		set["percent_complete"] = *patch.PercentComplete
	}
	if patch.SnapshotVersion != nil {
		set["snapshot_version"] = *patch.SnapshotVersion
	}
	if patch.Promoted != nil {
		set["promoted"] = *patch.Promoted
	}
	if len(set) == 0 {
		return nil
	}
	_, err := c.syncs.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

// GetActiveSync returns the running sync for tenantID, if any.
func (c *client) GetActiveSync(ctx context.Context, tenantID string) (opsmeta.SyncRow, bool, error) {
	return c.findOneSync(ctx, bson.M{"tenant_id": tenantID, "status": opsmeta.SyncStatusRunning},
		options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}}))
}

// GetLastCompletedSync returns the most recent completed sync for tenantID.
func (c *client) GetLastCompletedSync(ctx context.Context, tenantID string) (opsmeta.SyncRow, bool, error) {
	return c.findOneSync(ctx, bson.M{"tenant_id": tenantID, "status": opsmeta.SyncStatusCompleted},
		options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}}))
}

func (c *client) findOneSync(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (opsmeta.SyncRow, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var row opsmeta.SyncRow
	err := c.syncs.FindOne(ctx, filter, opts).Decode(&row)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return opsmeta.SyncRow{}, false, nil
	}
	if err != nil {
		return opsmeta.SyncRow{}, false, err
	}
	return row, true, nil
}

// GetSyncHistory returns up to limit rows for tenantID, newest first.
func (c *client) GetSyncHistory(ctx context.Context, tenantID string, limit int) ([]opsmeta.SyncRow, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if limit <= 0 {
		limit = 20
	}
	cur, err := c.syncs.Find(ctx, bson.M{"tenant_id": tenantID},
		options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var rows []opsmeta.SyncRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertLocalUser inserts or replaces a local user keyed on id.
func (c *client) UpsertLocalUser(ctx context.Context, u opsmeta.LocalUser) error {
	if u.ID == "" {
		return errors.New("user id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	_, err := c.users.UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": u}, options.UpdateOne().SetUpsert(true))
	return err
}

// GetLocalUserByUsername looks up a local user by username.
func (c *client) GetLocalUserByUsername(ctx context.Context, username string) (opsmeta.LocalUser, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var u opsmeta.LocalUser
	err := c.users.FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return opsmeta.LocalUser{}, false, nil
	}
	if err != nil {
		return opsmeta.LocalUser{}, false, err
	}
	return u, true, nil
}

// CreateSession inserts a new session row.
func (c *client) CreateSession(ctx context.Context, s opsmeta.SessionRow) error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.sessions.InsertOne(ctx, s)
	return err
}

// GetSession fetches a session row by id.
func (c *client) GetSession(ctx context.Context, id string) (opsmeta.SessionRow, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var s opsmeta.SessionRow
	err := c.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return opsmeta.SessionRow{}, false, nil
	}
	if err != nil {
		return opsmeta.SessionRow{}, false, err
	}
	return s, true, nil
}

// DeleteSession removes a session row, e.g. on logout.
func (c *client) DeleteSession(ctx context.Context, id string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.sessions.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
