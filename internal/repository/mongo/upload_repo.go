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

const uploadCollectionName = "pending_uploads"

// mongoUploadRepository implements repository.UploadRepository
type mongoUploadRepository struct {
	collection *mongo.Collection
}

// NewMongoUploadRepository creates a new Upload repository backed by MongoDB.
func NewMongoUploadRepository(db *mongo.Database) repository.UploadRepository {
	return &mongoUploadRepository{
		collection: db.Collection(uploadCollectionName),
	}
}

// slotFilter matches the record of one slot. The thumbnail is stored with an
// empty lessonId, never a missing one, so plain equality finds it.
func slotFilter(draftID primitive.ObjectID, lessonID string, slot domain.Slot) bson.M {
	return bson.M{"draftId": draftID, "lessonId": lessonID, "slot": slot}
}

// Upsert stores upload as the pending file of its slot, returning the previous
// record so the caller can drop the replaced object.
func (r *mongoUploadRepository) Upsert(ctx context.Context, upload *domain.PendingUpload) (*domain.PendingUpload, error) {
	if upload.DraftID == primitive.NilObjectID || upload.ObjectKey == "" || !upload.Slot.Valid() {
		return nil, errors.New("upload requires draftId, objectKey and a valid slot")
	}

	filter := slotFilter(upload.DraftID, upload.LessonID, upload.Slot)
	previous, err := r.GetBySlot(ctx, upload.DraftID, upload.LessonID, upload.Slot)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		previous = nil
		upload.ID = primitive.NewObjectID()
	case err != nil:
		return nil, err
	default:
		upload.ID = previous.ID // _id is immutable on replace
	}
	upload.UploadedAt = time.Now().UTC()

	if _, err := r.collection.ReplaceOne(ctx, filter, upload, options.Replace().SetUpsert(true)); err != nil {
		return nil, err
	}
	return previous, nil
}

// GetByDraft retrieves every pending upload of a draft.
func (r *mongoUploadRepository) GetByDraft(ctx context.Context, draftID primitive.ObjectID) ([]domain.PendingUpload, error) {
	return r.find(ctx, bson.M{"draftId": draftID})
}

// GetBySlot retrieves the pending upload bound to one slot.
func (r *mongoUploadRepository) GetBySlot(ctx context.Context, draftID primitive.ObjectID, lessonID string, slot domain.Slot) (*domain.PendingUpload, error) {
	var upload domain.PendingUpload
	err := r.collection.FindOne(ctx, slotFilter(draftID, lessonID, slot)).Decode(&upload)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &upload, nil
}

// Delete removes one pending upload record.
func (r *mongoUploadRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByLessons removes the pending uploads of the given lessons and returns them.
func (r *mongoUploadRepository) DeleteByLessons(ctx context.Context, draftID primitive.ObjectID, lessonIDs []string) ([]domain.PendingUpload, error) {
	if len(lessonIDs) == 0 {
		return nil, nil
	}
	return r.deleteMatching(ctx, bson.M{"draftId": draftID, "lessonId": bson.M{"$in": lessonIDs}})
}

// DeleteByDraft removes all pending uploads of a draft and returns them.
func (r *mongoUploadRepository) DeleteByDraft(ctx context.Context, draftID primitive.ObjectID) ([]domain.PendingUpload, error) {
	return r.deleteMatching(ctx, bson.M{"draftId": draftID})
}

func (r *mongoUploadRepository) deleteMatching(ctx context.Context, filter bson.M) ([]domain.PendingUpload, error) {
	uploads, err := r.find(ctx, filter)
	if err != nil || len(uploads) == 0 {
		return uploads, err
	}
	ids := make([]primitive.ObjectID, len(uploads))
	for i, u := range uploads {
		ids[i] = u.ID
	}
	if _, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, err
	}
	return uploads, nil
}

func (r *mongoUploadRepository) find(ctx context.Context, filter bson.M) ([]domain.PendingUpload, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var uploads []domain.PendingUpload
	if err = cursor.All(ctx, &uploads); err != nil {
		return nil, err
	}
	return uploads, nil
}

// EnsureUploadIndexes creates necessary indexes for the pending uploads collection.
func EnsureUploadIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// One pending file per slot
			Keys:    bson.D{{Key: "draftId", Value: 1}, {Key: "lessonId", Value: 1}, {Key: "slot", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "objectKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
