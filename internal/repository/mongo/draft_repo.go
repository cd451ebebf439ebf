package mongo

import (
	"context"
	"errors"
	"time"

	"skillsphere/course-studio/internal/domain"
	"skillsphere/course-studio/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const draftCollectionName = "drafts"

// mongoDraftRepository implements repository.DraftRepository
type mongoDraftRepository struct {
	collection *mongo.Collection
}

// NewMongoDraftRepository creates a new Draft repository backed by MongoDB.
func NewMongoDraftRepository(db *mongo.Database) repository.DraftRepository {
	return &mongoDraftRepository{
		collection: db.Collection(draftCollectionName),
	}
}

// Create inserts a new draft. The whole curriculum tree is stored in the same document.
func (r *mongoDraftRepository) Create(ctx context.Context, draft *domain.Draft) (primitive.ObjectID, error) {
	if draft.AuthorID == "" {
		return primitive.NilObjectID, errors.New("draft requires authorId")
	}

	draft.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	draft.CreatedAt = now
	draft.UpdatedAt = now
	draft.Revision = 1
	if draft.Status == "" {
		draft.Status = domain.DraftStatusEditing
	}
	if draft.Modules == nil {
		draft.Modules = []domain.Module{}
	}

	result, err := r.collection.InsertOne(ctx, draft)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves a draft by its ID.
func (r *mongoDraftRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Draft, error) {
	var draft domain.Draft
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&draft)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &draft, nil
}

// GetByAuthor lists an author's drafts, most recently edited first.
func (r *mongoDraftRepository) GetByAuthor(ctx context.Context, authorID string) ([]domain.Draft, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"authorId": authorID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var drafts []domain.Draft
	if err = cursor.All(ctx, &drafts); err != nil {
		return nil, err
	}
	if drafts == nil {
		drafts = []domain.Draft{}
	}
	return drafts, nil
}

// Update replaces the stored draft when the revision matches.
func (r *mongoDraftRepository) Update(ctx context.Context, draft *domain.Draft) error {
	expected := draft.Revision
	draft.Revision = expected + 1
	draft.UpdatedAt = time.Now().UTC()

	filter := bson.M{"_id": draft.ID, "revision": expected}
	result, err := r.collection.ReplaceOne(ctx, filter, draft)
	if err != nil {
		draft.Revision = expected
		return err
	}
	if result.MatchedCount == 0 {
		draft.Revision = expected
		// Distinguish a missing draft from a stale write
		count, cerr := r.collection.CountDocuments(ctx, bson.M{"_id": draft.ID})
		if cerr != nil {
			return cerr
		}
		if count == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

// Delete removes a draft document.
func (r *mongoDraftRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureDraftIndexes creates necessary indexes for the drafts collection.
func EnsureDraftIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Listing an author's drafts
			Keys:    bson.D{{Key: "authorId", Value: 1}, {Key: "updatedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "courseSlug", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
