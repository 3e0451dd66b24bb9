package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/driftline/backend/internal/models"
)

// MongoIdentityStore keeps one document per account in the "identities"
// collection. The embedded warning/ban arrays ride along with the document,
// so a single conditional replace covers every moderation mutation.
type MongoIdentityStore struct {
	client *mongo.Client
	db     *mongo.Database
	col    *mongo.Collection
}

func NewMongoIdentityStore(ctx context.Context, mongoURI, dbName string) (*MongoIdentityStore, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI).SetTLSConfig(tlsCfg))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	col := db.Collection("identities")

	// Best-effort indexes.
	_, _ = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username_lower", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoIdentityStore{client: client, db: db, col: col}, nil
}

func (s *MongoIdentityStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoIdentityStore) GetByAccountID(ctx context.Context, accountID string) (*models.Identity, error) {
	var id models.Identity
	if err := s.col.FindOne(ctx, bson.M{"_id": accountID}).Decode(&id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return &id, nil
}

func (s *MongoIdentityStore) GetByIdentifier(ctx context.Context, identifier string) (*models.Identity, error) {
	filter := bson.M{"$or": []bson.M{
		{"_id": identifier},
		{"username_lower": strings.ToLower(identifier)},
	}}

	var id models.Identity
	if err := s.col.FindOne(ctx, filter).Decode(&id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return &id, nil
}

func (s *MongoIdentityStore) Search(ctx context.Context, query string) ([]models.Identity, error) {
	pattern := regexp.QuoteMeta(strings.ToLower(strings.TrimSpace(query)))
	if pattern == "" {
		return nil, nil
	}

	cur, err := s.col.Find(ctx,
		bson.M{"username_lower": bson.M{"$regex": pattern}},
		options.Find().SetLimit(SearchLimit).SetSort(bson.D{{Key: "username_lower", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Identity
	for cur.Next(ctx) {
		var id models.Identity
		if err := cur.Decode(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoIdentityStore) Create(ctx context.Context, identity *models.Identity) error {
	identity.UsernameLower = strings.ToLower(identity.Username)
	if identity.Version == 0 {
		identity.Version = 1
	}
	_, err := s.col.InsertOne(ctx, identity)
	if mongo.IsDuplicateKeyError(err) {
		return ErrUsernameTaken
	}
	return err
}

// Update is the CAS write: replace the document only if its stored version
// still matches the one the caller read.
func (s *MongoIdentityStore) Update(ctx context.Context, identity *models.Identity) error {
	next := identity.Clone()
	next.UsernameLower = strings.ToLower(next.Username)
	next.Version = identity.Version + 1

	res, err := s.col.ReplaceOne(ctx,
		bson.M{"_id": identity.AccountID, "version": identity.Version},
		next,
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish a lost race from a vanished document.
		if err := s.col.FindOne(ctx, bson.M{"_id": identity.AccountID}).Err(); errors.Is(err, mongo.ErrNoDocuments) {
			return ErrIdentityNotFound
		}
		return ErrVersionConflict
	}
	identity.Version = next.Version
	return nil
}
