package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wardenlabs/warden/pkg/dataaccess/monitoring"
	"github.com/wardenlabs/warden/pkg/entities"
	"github.com/wardenlabs/warden/pkg/logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoBackendName = "mongo"

// Collection names.
const (
	permissionsCollection = "permissions"
	guildsCollection      = "guilds"
	warnsCollection       = "warns"
)

// mongoStore is the Mongo-backed Store. Each record is one document per guild,
// upserted whole, which matches the one-JSON-document-per-concern layout of
// the default backend.
type mongoStore struct {
	// l is the logger.
	l *slog.Logger

	// client is the database. This is a connection pool.
	client *mongo.Client
}

// NewMongoStore creates a Store backed by MongoDB.
func NewMongoStore(l *slog.Logger, client *mongo.Client) Store {
	return &mongoStore{
		l:      l.With(slog.String(logging.KeyDal, mongoBackendName)),
		client: client,
	}
}

func (m *mongoStore) collection(name string) *mongo.Collection {
	return m.client.Database(mongoDatabase).Collection(name)
}

func observeMongo(dal, query, collection string) func() {
	monitoring.StoreTotalRequests.WithLabelValues(dal, query, mongoBackendName, collection).Inc()
	t := prometheus.NewTimer(monitoring.StoreLatency.WithLabelValues(dal, query, mongoBackendName, collection))
	return func() { t.ObserveDuration() }
}

func (m *mongoStore) GetGuildPermissions(ctx context.Context, guildID string) (*entities.GuildPermissions, error) {
	done := observeMongo(permissionsDalName, "get_guild_permissions", permissionsCollection)
	defer done()

	rec := new(entities.GuildPermissions)
	err := m.collection(permissionsCollection).FindOne(ctx, bson.M{"id": guildID}).Decode(rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entities.NewGuildPermissions(guildID), nil
	} else if err != nil {
		return nil, fmt.Errorf("error getting guild permissions: %w", err)
	}

	if rec.RoleLevels == nil {
		rec.RoleLevels = make(map[string]int)
	}
	return rec, nil
}

func (m *mongoStore) SaveGuildPermissions(ctx context.Context, rec *entities.GuildPermissions) error {
	done := observeMongo(permissionsDalName, "save_guild_permissions", permissionsCollection)
	defer done()

	opts := options.Update().SetUpsert(true)
	_, err := m.collection(permissionsCollection).UpdateOne(ctx, bson.M{"id": rec.ID}, bson.M{"$set": rec}, opts)
	if err != nil {
		return fmt.Errorf("error updating guild permissions: %w", err)
	}
	return nil
}

func (m *mongoStore) GetGuildByID(ctx context.Context, guildID string) (*entities.Guild, error) {
	done := observeMongo(guildDalName, "get_guild_by_id", guildsCollection)
	defer done()

	guild := new(entities.Guild)
	err := m.collection(guildsCollection).FindOne(ctx, bson.M{"id": guildID}).Decode(guild)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entities.NewGuild(guildID), nil
	} else if err != nil {
		return nil, fmt.Errorf("error getting guild: %w", err)
	}

	if guild.Ticketing.OpenTickets == nil {
		guild.Ticketing.OpenTickets = make(map[string]string)
	}
	if guild.Ticketing.Types == nil {
		guild.Ticketing.Types = entities.DefaultTicketTypes()
	}
	return guild, nil
}

func (m *mongoStore) SaveGuild(ctx context.Context, guild *entities.Guild) error {
	done := observeMongo(guildDalName, "save_guild", guildsCollection)
	defer done()

	opts := options.Update().SetUpsert(true)
	_, err := m.collection(guildsCollection).UpdateOne(ctx, bson.M{"id": guild.ID}, bson.M{"$set": guild}, opts)
	if err != nil {
		return fmt.Errorf("error updating guild: %w", err)
	}
	return nil
}

func (m *mongoStore) AddWarn(ctx context.Context, warn *entities.Warn) error {
	done := observeMongo(warnDalName, "add_warn", warnsCollection)
	defer done()

	if _, err := m.collection(warnsCollection).InsertOne(ctx, warn); err != nil {
		return fmt.Errorf("error inserting warn: %w", err)
	}
	return nil
}

func (m *mongoStore) GetWarns(ctx context.Context, guildID, userID string) ([]*entities.Warn, error) {
	done := observeMongo(warnDalName, "get_warns", warnsCollection)
	defer done()

	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cur, err := m.collection(warnsCollection).Find(ctx, bson.M{"guild_id": guildID, "user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding warns: %w", err)
	}
	defer cur.Close(ctx)

	var warns []*entities.Warn
	if err := cur.All(ctx, &warns); err != nil {
		return nil, fmt.Errorf("error decoding warns: %w", err)
	}
	return warns, nil
}

func (m *mongoStore) RemoveWarn(ctx context.Context, guildID, userID string, index int) error {
	done := observeMongo(warnDalName, "remove_warn", warnsCollection)
	defer done()

	warns, err := m.GetWarns(ctx, guildID, userID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(warns) {
		return ErrWarnNotFound
	}

	target := warns[index]
	_, err = m.collection(warnsCollection).DeleteOne(ctx, bson.M{
		"guild_id":   guildID,
		"user_id":    userID,
		"created_at": target.CreatedAt,
		"reason":     target.Reason,
	})
	if err != nil {
		return fmt.Errorf("error deleting warn: %w", err)
	}
	return nil
}

func (m *mongoStore) ClearWarns(ctx context.Context, guildID, userID string) (int, error) {
	done := observeMongo(warnDalName, "clear_warns", warnsCollection)
	defer done()

	res, err := m.collection(warnsCollection).DeleteMany(ctx, bson.M{"guild_id": guildID, "user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("error deleting warns: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (m *mongoStore) Ping(ctx context.Context) error {
	done := observeMongo("health_check", "ping", "-")
	defer done()

	if err := m.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return nil
}
