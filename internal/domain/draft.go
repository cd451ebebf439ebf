// internal/domain/draft.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DraftStatus tracks where a draft is in its authoring lifecycle.
type DraftStatus string

const (
	DraftStatusEditing   DraftStatus = "editing"
	DraftStatusSubmitted DraftStatus = "submitted" // Accepted by the SkillSphere backend
)

// ContentType tags what a Lesson carries.
type ContentType string

const (
	ContentVideo ContentType = "Video"
	ContentText  ContentType = "Text"
	ContentQuiz  ContentType = "Quiz"
)

// Valid reports whether c is one of the supported lesson content types.
func (c ContentType) Valid() bool {
	switch c {
	case ContentVideo, ContentText, ContentQuiz:
		return true
	}
	return false
}

// Draft is the root in-progress authoring object for one course.
// Modules, weeks and lessons are embedded: the whole tree is one document.
type Draft struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AuthorID    string             `bson:"authorId" json:"authorId"`                         // Backend user ID of the authoring user
	CourseSlug  string             `bson:"courseSlug,omitempty" json:"courseSlug,omitempty"` // Set in edit mode or after a successful create
	Title       string             `bson:"title" json:"title"`
	Category    string             `bson:"category" json:"category"`
	Price       float64            `bson:"price" json:"price"`
	Description string             `bson:"description" json:"description"`
	// ThumbnailURL is the already-published thumbnail (edit mode). A replacement
	// lives in the upload registry under the thumbnail slot.
	ThumbnailURL string      `bson:"thumbnailUrl,omitempty" json:"thumbnailUrl,omitempty"`
	Modules      []Module    `bson:"modules" json:"modules"`
	Status       DraftStatus `bson:"status" json:"status"`
	Revision     int64       `bson:"revision" json:"revision"` // Bumped on every write, used for optimistic concurrency
	CreatedAt    time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time   `bson:"updatedAt" json:"updatedAt"`
}

// IsEdit reports whether the draft replaces an existing course rather than creating one.
func (d *Draft) IsEdit() bool {
	return d.CourseSlug != "" && d.Status != DraftStatusSubmitted
}

// Module is the top curriculum level.
type Module struct {
	ID        string `bson:"id" json:"id"`                                 // Stable synthetic identity
	BackendID *int64 `bson:"backendId,omitempty" json:"backendId,omitempty"` // Present when hydrated from an existing course
	Title     string `bson:"title" json:"title"`
	Order     int    `bson:"order" json:"order"`
	Weeks     []Week `bson:"weeks" json:"weeks"`
}

// Week groups lessons inside a module.
type Week struct {
	ID        string   `bson:"id" json:"id"`
	BackendID *int64   `bson:"backendId,omitempty" json:"backendId,omitempty"`
	Title     string   `bson:"title" json:"title"`
	Order     int      `bson:"order" json:"order"`
	Lessons   []Lesson `bson:"lessons" json:"lessons"`
}

// Lesson is a curriculum leaf. Which content fields matter depends on ContentType.
type Lesson struct {
	ID          string      `bson:"id" json:"id"`
	BackendID   *int64      `bson:"backendId,omitempty" json:"backendId,omitempty"`
	Title       string      `bson:"title" json:"title"`
	Order       int         `bson:"order" json:"order"`
	ContentType ContentType `bson:"contentType" json:"contentType"`

	// Video
	VideoURL     string `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"`         // External video link
	VideoFileURL string `bson:"videoFileUrl,omitempty" json:"videoFileUrl,omitempty"` // Already-uploaded asset (edit mode)

	// Text
	Content      string `bson:"content,omitempty" json:"content,omitempty"`
	ResourceLink string `bson:"resourceLink,omitempty" json:"resourceLink,omitempty"`
	DocFileURL   string `bson:"docFileUrl,omitempty" json:"docFileUrl,omitempty"`

	// Quiz. The question bank itself is authored later against the lesson ID.
	QuestionCount int `bson:"questionCount,omitempty" json:"questionCount,omitempty"`
	PassingScore  int `bson:"passingScore,omitempty" json:"passingScore,omitempty"`
}
