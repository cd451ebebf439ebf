package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Slot names the attachment point a pending file is bound to.
type Slot string

const (
	SlotVideo     Slot = "video"
	SlotDoc       Slot = "doc"
	SlotThumbnail Slot = "thumbnail" // Course-level, not tied to a lesson
)

// Valid reports whether s is a known slot.
func (s Slot) Valid() bool {
	return s == SlotVideo || s == SlotDoc || s == SlotThumbnail
}

// LessonSlot reports whether s belongs to a lesson (as opposed to the course).
func (s Slot) LessonSlot() bool {
	return s == SlotVideo || s == SlotDoc
}

// PendingUpload stores metadata about a file the author selected for a slot
// but which has not been sent to the backend yet. The bytes live in object storage.
type PendingUpload struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DraftID     primitive.ObjectID `bson:"draftId" json:"draftId"`
	AuthorID    string             `bson:"authorId" json:"authorId"`
	LessonID    string             `bson:"lessonId" json:"lessonId,omitempty"` // Stable lesson identity, "" for the thumbnail (stored, not omitted)
	Slot        Slot               `bson:"slot" json:"slot"`
	ObjectKey   string             `bson:"objectKey" json:"-"` // Storage key, internal use
	FileName    string             `bson:"fileName" json:"fileName"`
	ContentType string             `bson:"contentType" json:"contentType"`
	Size        int64              `bson:"size" json:"size"`
	UploadedAt  time.Time          `bson:"uploadedAt" json:"uploadedAt"`
}
