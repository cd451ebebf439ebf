package api

import (
	"time"

	"skillsphere/course-studio/internal/curriculum"
	"skillsphere/course-studio/internal/domain"
	"skillsphere/course-studio/internal/service"
)

// --- Request DTOs ---

// NodeFieldRequest updates one field of a module, week or lesson.
// Lesson set means a lesson field, else Week set means a week field, else a module field.
type NodeFieldRequest struct {
	Module *int   `json:"module" binding:"required,min=0"`
	Week   *int   `json:"week" binding:"omitempty,min=0"`
	Lesson *int   `json:"lesson" binding:"omitempty,min=0"`
	Field  string `json:"field" binding:"required"`
	Value  any    `json:"value"`
}

// NodeAddressQuery addresses the node to remove.
type NodeAddressQuery struct {
	Module *int `form:"module" binding:"required,min=0"`
	Week   *int `form:"week" binding:"omitempty,min=0"`
	Lesson *int `form:"lesson" binding:"omitempty,min=0"`
}

// SlotQuery addresses a pending file slot, either by indices or by positional key.
type SlotQuery struct {
	Slot   domain.Slot `form:"slot"`
	Module int         `form:"module" binding:"min=0"`
	Week   int         `form:"week" binding:"min=0"`
	Lesson int         `form:"lesson" binding:"min=0"`
	Key    string      `form:"key"`
}

func (q SlotQuery) toTarget() service.SlotTarget {
	return service.SlotTarget{Slot: q.Slot, Module: q.Module, Week: q.Week, Lesson: q.Lesson, Key: q.Key}
}

// --- Response DTOs ---

type PendingFileResponse struct {
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type LessonResponse struct {
	domain.Lesson
	// Positional keys the lesson's files would be sent under right now
	VideoKey     string                              `json:"videoKey"`
	DocKey       string                              `json:"docKey"`
	HasFile      map[domain.Slot]bool                `json:"hasFile"`
	PendingFiles map[domain.Slot]PendingFileResponse `json:"pendingFiles,omitempty"`
}

type WeekResponse struct {
	ID        string           `json:"id"`
	BackendID *int64           `json:"backendId,omitempty"`
	Title     string           `json:"title"`
	Order     int              `json:"order"`
	Lessons   []LessonResponse `json:"lessons"`
}

type ModuleResponse struct {
	ID        string         `json:"id"`
	BackendID *int64         `json:"backendId,omitempty"`
	Title     string         `json:"title"`
	Order     int            `json:"order"`
	Weeks     []WeekResponse `json:"weeks"`
}

type DraftResponse struct {
	ID               string               `json:"id"`
	CourseSlug       string               `json:"courseSlug,omitempty"`
	Mode             string               `json:"mode"` // "edit" once the draft is bound to a course, else "create"
	Title            string               `json:"title"`
	Category         string               `json:"category"`
	Price            float64              `json:"price"`
	Description      string               `json:"description"`
	ThumbnailURL     string               `json:"thumbnailUrl,omitempty"`
	PendingThumbnail *PendingFileResponse `json:"pendingThumbnail,omitempty"`
	Status           domain.DraftStatus   `json:"status"`
	Revision         int64                `json:"revision"`
	Modules          []ModuleResponse     `json:"modules"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// DraftSummaryResponse is one entry of the draft list.
type DraftSummaryResponse struct {
	ID         string             `json:"id"`
	CourseSlug string             `json:"courseSlug,omitempty"`
	Title      string             `json:"title"`
	Status     domain.DraftStatus `json:"status"`
	Modules    int                `json:"modules"`
	Revision   int64              `json:"revision"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

type DeployResponse struct {
	Message  string        `json:"message"`
	CourseID int64         `json:"courseId"`
	Slug     string        `json:"slug"`
	Draft    DraftResponse `json:"draft"`
}

func mapPendingFile(u domain.PendingUpload) PendingFileResponse {
	return PendingFileResponse{FileName: u.FileName, ContentType: u.ContentType, Size: u.Size, UploadedAt: u.UploadedAt}
}

// MapDraftToResponse converts a draft and its pending uploads to the API shape.
func MapDraftToResponse(d *domain.Draft, uploads []domain.PendingUpload) DraftResponse {
	if d == nil {
		return DraftResponse{}
	}
	pending := make(map[curriculum.SlotRef]domain.PendingUpload, len(uploads))
	for _, u := range uploads {
		pending[curriculum.SlotRef{LessonID: u.LessonID, Slot: u.Slot}] = u
	}

	resp := DraftResponse{
		ID:           d.ID.Hex(),
		CourseSlug:   d.CourseSlug,
		Mode:         "create",
		Title:        d.Title,
		Category:     d.Category,
		Price:        d.Price,
		Description:  d.Description,
		ThumbnailURL: d.ThumbnailURL,
		Status:       d.Status,
		Revision:     d.Revision,
		Modules:      make([]ModuleResponse, len(d.Modules)),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	// Any draft bound to a course edits it, including one already deployed
	if d.CourseSlug != "" {
		resp.Mode = "edit"
	}
	if u, ok := pending[curriculum.ThumbnailRef()]; ok {
		f := mapPendingFile(u)
		resp.PendingThumbnail = &f
	}

	for mi, m := range d.Modules {
		mr := ModuleResponse{ID: m.ID, BackendID: m.BackendID, Title: m.Title, Order: m.Order, Weeks: make([]WeekResponse, len(m.Weeks))}
		for wi, w := range m.Weeks {
			wr := WeekResponse{ID: w.ID, BackendID: w.BackendID, Title: w.Title, Order: w.Order, Lessons: make([]LessonResponse, len(w.Lessons))}
			for li, l := range w.Lessons {
				lr := LessonResponse{
					Lesson:   l,
					VideoKey: curriculum.PositionalKey(mi, wi, li, domain.SlotVideo),
					DocKey:   curriculum.PositionalKey(mi, wi, li, domain.SlotDoc),
					HasFile:  map[domain.Slot]bool{domain.SlotVideo: false, domain.SlotDoc: false},
				}
				for _, slot := range []domain.Slot{domain.SlotVideo, domain.SlotDoc} {
					if u, ok := pending[curriculum.SlotRef{LessonID: l.ID, Slot: slot}]; ok {
						lr.HasFile[slot] = true
						if lr.PendingFiles == nil {
							lr.PendingFiles = make(map[domain.Slot]PendingFileResponse)
						}
						lr.PendingFiles[slot] = mapPendingFile(u)
					}
				}
				wr.Lessons[li] = lr
			}
			mr.Weeks[wi] = wr
		}
		resp.Modules[mi] = mr
	}
	return resp
}

// MapDraftsToSummaries converts a draft list to summaries.
func MapDraftsToSummaries(drafts []domain.Draft) []DraftSummaryResponse {
	out := make([]DraftSummaryResponse, len(drafts))
	for i, d := range drafts {
		out[i] = DraftSummaryResponse{
			ID:         d.ID.Hex(),
			CourseSlug: d.CourseSlug,
			Title:      d.Title,
			Status:     d.Status,
			Modules:    len(d.Modules),
			Revision:   d.Revision,
			UpdatedAt:  d.UpdatedAt,
		}
	}
	return out
}
