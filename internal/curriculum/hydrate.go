package curriculum

import (
	"strings"

	"skillsphere/course-studio/internal/domain"
)

// Hydrate builds an editable draft from an existing course record. Every node gets
// a fresh stable ID and keeps its backend ID, so an update can be matched server side.
// resolve turns relative media paths into absolute URLs; nil leaves them as they are.
func Hydrate(rec *CourseRecord, authorID string, resolve func(string) string) *domain.Draft {
	if resolve == nil {
		resolve = func(s string) string { return s }
	}
	price, _ := rec.Price.Float()
	d := NewDraft(authorID)
	d.CourseSlug = rec.Slug
	d.Title = rec.Title
	d.Category = string(rec.Category)
	d.Price = price
	d.Description = rec.Description
	d.ThumbnailURL = resolveMedia(resolve, rec.Thumbnail)

	for _, mr := range rec.Modules {
		m := domain.Module{ID: newID(), BackendID: idPtr(mr.ID), Title: mr.Title, Order: mr.Order, Weeks: []domain.Week{}}
		for _, wr := range mr.Weeks {
			w := domain.Week{ID: newID(), BackendID: idPtr(wr.ID), Title: wr.Title, Order: wr.Order, Lessons: []domain.Lesson{}}
			for _, lr := range wr.Lessons {
				ct := domain.ContentType(lr.ContentType)
				if !ct.Valid() {
					ct = contentTypeFold(lr.ContentType)
				}
				w.Lessons = append(w.Lessons, domain.Lesson{
					ID:            newID(),
					BackendID:     idPtr(lr.ID),
					Title:         lr.Title,
					Order:         lr.Order,
					ContentType:   ct,
					VideoURL:      lr.VideoURL,
					VideoFileURL:  resolveMedia(resolve, lr.VideoFile),
					Content:       lr.Content,
					ResourceLink:  lr.ResourceLink,
					DocFileURL:    resolveMedia(resolve, lr.DocFile),
					QuestionCount: lr.QuestionCount,
					PassingScore:  lr.PassingScore,
				})
			}
			m.Weeks = append(m.Weeks, w)
		}
		d.Modules = append(d.Modules, m)
	}
	return d
}

// contentTypeFold maps differently-cased tags onto the known ones, Video otherwise.
func contentTypeFold(s string) domain.ContentType {
	for _, ct := range []domain.ContentType{domain.ContentVideo, domain.ContentText, domain.ContentQuiz} {
		if strings.EqualFold(s, string(ct)) {
			return ct
		}
	}
	return domain.ContentVideo
}

func resolveMedia(resolve func(string) string, p string) string {
	if p == "" {
		return ""
	}
	return resolve(p)
}

func idPtr(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
