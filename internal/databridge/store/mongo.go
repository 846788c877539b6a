package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/databridge/internal/model"
	"github.com/kart-io/databridge/pkg/component/mongodb"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

const (
	documentCollection = "documents"
	cacheCollection    = "caches"
)

// MongoStore implements Database on MongoDB.
type MongoStore struct {
	client *mongodb.Client
	docs   *mongo.Collection
	caches *mongo.Collection
}

var _ Database = (*MongoStore)(nil)

// NewMongoStore creates a MongoDB-backed metadata store.
func NewMongoStore(client *mongodb.Client) *MongoStore {
	return &MongoStore{
		client: client,
		docs:   client.Collection(documentCollection),
		caches: client.Collection(cacheCollection),
	}
}

// buildAccessFilter builds the ownership predicate for read access:
// the caller owns the document or appears in its reader set.
func buildAccessFilter(auth model.AuthContext) bson.M {
	return bson.M{
		"$or": bson.A{
			bson.M{"owner.id": auth.EntityID},
			bson.M{"access_control.readers": auth.EntityID},
		},
	}
}

// buildMetadataFilter maps caller filter keys onto the user metadata
// namespace so filters cannot reach system fields.
func buildMetadataFilter(filters map[string]any) bson.M {
	q := bson.M{}
	for k, v := range filters {
		q["metadata."+k] = v
	}
	return q
}

// buildQuery conjoins the access predicate with the metadata filter.
// Filters never widen access.
func buildQuery(auth model.AuthContext, filters map[string]any) bson.M {
	access := buildAccessFilter(auth)
	if len(filters) == 0 {
		return access
	}
	return bson.M{"$and": bson.A{access, buildMetadataFilter(filters)}}
}

// StoreDocument persists a new document record.
func (s *MongoStore) StoreDocument(ctx context.Context, doc *model.Document) error {
	if _, err := s.docs.InsertOne(ctx, doc); err != nil {
		return utilerrors.ErrMetadataStore.WithCause(err)
	}
	return nil
}

// GetDocument fetches a document by external id.
func (s *MongoStore) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	var doc model.Document
	err := s.docs.FindOne(ctx, bson.M{"external_id": documentID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utilerrors.ErrDocNotFound
		}
		return nil, utilerrors.ErrMetadataStore.WithCause(err)
	}
	return &doc, nil
}

// ListDocuments returns documents readable by the caller.
func (s *MongoStore) ListDocuments(ctx context.Context, auth model.AuthContext, filters map[string]any, skip, limit int64) ([]*model.Document, error) {
	findOpts := mongooptions.Find().SetSkip(skip).SetSort(bson.M{"system_metadata.created_at": -1})
	if limit > 0 {
		findOpts.SetLimit(limit)
	}

	cursor, err := s.docs.Find(ctx, buildQuery(auth, filters), findOpts)
	if err != nil {
		return nil, utilerrors.ErrMetadataStore.WithCause(err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []*model.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, utilerrors.ErrMetadataStore.WithCause(err)
	}
	return docs, nil
}

// ListDocumentIDs returns the ids of readable documents matching the
// metadata filters.
func (s *MongoStore) ListDocumentIDs(ctx context.Context, auth model.AuthContext, filters map[string]any) ([]string, error) {
	findOpts := mongooptions.Find().SetProjection(bson.M{"external_id": 1})

	cursor, err := s.docs.Find(ctx, buildQuery(auth, filters), findOpts)
	if err != nil {
		return nil, utilerrors.ErrMetadataStore.WithCause(err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var ids []string
	for cursor.Next(ctx) {
		var row struct {
			ExternalID string `bson:"external_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, utilerrors.ErrMetadataStore.WithCause(err)
		}
		ids = append(ids, row.ExternalID)
	}
	if err := cursor.Err(); err != nil {
		return nil, utilerrors.ErrMetadataStore.WithCause(err)
	}
	return ids, nil
}

// UpdateDocument replaces the stored record for doc's external id.
func (s *MongoStore) UpdateDocument(ctx context.Context, doc *model.Document) error {
	result, err := s.docs.ReplaceOne(ctx, bson.M{"external_id": doc.ExternalID}, doc)
	if err != nil {
		return utilerrors.ErrMetadataStore.WithCause(err)
	}
	if result.MatchedCount == 0 {
		return utilerrors.ErrDocNotFound
	}
	return nil
}

// DeleteDocument removes a document record.
func (s *MongoStore) DeleteDocument(ctx context.Context, documentID string) error {
	result, err := s.docs.DeleteOne(ctx, bson.M{"external_id": documentID})
	if err != nil {
		return utilerrors.ErrMetadataStore.WithCause(err)
	}
	if result.DeletedCount == 0 {
		return utilerrors.ErrDocNotFound
	}
	return nil
}

// StoreCache upserts a cache descriptor by name. Last write wins.
func (s *MongoStore) StoreCache(ctx context.Context, meta *model.CacheMetadata) error {
	opts := mongooptions.Replace().SetUpsert(true)
	if _, err := s.caches.ReplaceOne(ctx, bson.M{"name": meta.Name}, meta, opts); err != nil {
		return utilerrors.ErrMetadataStore.WithCause(err)
	}
	return nil
}

// GetCache fetches a cache descriptor by name.
func (s *MongoStore) GetCache(ctx context.Context, name string) (*model.CacheMetadata, error) {
	var meta model.CacheMetadata
	err := s.caches.FindOne(ctx, bson.M{"name": name}).Decode(&meta)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utilerrors.ErrCacheNotFound
		}
		return nil, utilerrors.ErrMetadataStore.WithCause(err)
	}
	return &meta, nil
}

// Close closes the MongoDB connection.
func (s *MongoStore) Close(_ context.Context) error {
	return s.client.Close()
}
