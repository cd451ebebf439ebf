package repository

import (
	"context"

	"skillsphere/course-studio/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrConflict     = RepositoryError("revision conflict")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// DraftRepository stores course drafts with their embedded curriculum tree.
type DraftRepository interface {
	Create(ctx context.Context, draft *domain.Draft) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Draft, error)
	GetByAuthor(ctx context.Context, authorID string) ([]domain.Draft, error)
	// Update replaces the draft if its stored revision still equals draft.Revision,
	// then bumps draft.Revision. A stale revision yields ErrConflict.
	Update(ctx context.Context, draft *domain.Draft) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// UploadRepository stores metadata about pending files. There is at most one
// record per (draft, lesson, slot).
type UploadRepository interface {
	// Upsert saves upload for its slot and returns the record it replaced, if any.
	Upsert(ctx context.Context, upload *domain.PendingUpload) (*domain.PendingUpload, error)
	GetByDraft(ctx context.Context, draftID primitive.ObjectID) ([]domain.PendingUpload, error)
	GetBySlot(ctx context.Context, draftID primitive.ObjectID, lessonID string, slot domain.Slot) (*domain.PendingUpload, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByLessons(ctx context.Context, draftID primitive.ObjectID, lessonIDs []string) ([]domain.PendingUpload, error)
	DeleteByDraft(ctx context.Context, draftID primitive.ObjectID) ([]domain.PendingUpload, error)
}
