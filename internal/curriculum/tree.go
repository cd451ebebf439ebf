package curriculum

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"skillsphere/course-studio/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrNodeNotFound   = errors.New("curriculum node not found")
	ErrInvalidAddress = errors.New("lesson address requires a week index")
	ErrUnknownField   = errors.New("unknown field")
	ErrInvalidValue   = errors.New("invalid field value")
)

// DefaultLessonTitle is the title every new lesson starts with.
const DefaultLessonTitle = "New Topic"

// newID hands out stable node identities.
var newID = uuid.NewString

// Every mutation below returns a fresh draft and leaves its input untouched.

// NewDraft returns an empty draft in the editing state.
func NewDraft(authorID string) *domain.Draft {
	return &domain.Draft{
		AuthorID: authorID,
		Modules:  []domain.Module{},
		Status:   domain.DraftStatusEditing,
	}
}

// Clone deep-copies a draft tree.
func Clone(d *domain.Draft) *domain.Draft {
	if d == nil {
		return nil
	}
	out := *d
	out.Modules = make([]domain.Module, len(d.Modules))
	for mi, m := range d.Modules {
		m.BackendID = cloneID(m.BackendID)
		weeks := make([]domain.Week, len(m.Weeks))
		for wi, w := range m.Weeks {
			w.BackendID = cloneID(w.BackendID)
			lessons := make([]domain.Lesson, len(w.Lessons))
			for li, l := range w.Lessons {
				l.BackendID = cloneID(l.BackendID)
				lessons[li] = l
			}
			w.Lessons = lessons
			weeks[wi] = w
		}
		m.Weeks = weeks
		out.Modules[mi] = m
	}
	return &out
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// AddModule appends "Module N+1" where N is the current module count.
func AddModule(d *domain.Draft) *domain.Draft {
	out := Clone(d)
	n := len(out.Modules)
	out.Modules = append(out.Modules, domain.Module{
		ID:    newID(),
		Title: fmt.Sprintf("Module %d", n+1),
		Order: n + 1,
		Weeks: []domain.Week{},
	})
	return out
}

// AddWeek appends "Week N+1" to module m.
func AddWeek(d *domain.Draft, m int) (*domain.Draft, error) {
	out := Clone(d)
	mod, err := moduleRef(out, m)
	if err != nil {
		return nil, err
	}
	n := len(mod.Weeks)
	mod.Weeks = append(mod.Weeks, domain.Week{
		ID:      newID(),
		Title:   fmt.Sprintf("Week %d", n+1),
		Order:   n + 1,
		Lessons: []domain.Lesson{},
	})
	return out, nil
}

// AddLesson appends a Video lesson titled DefaultLessonTitle to week w of module m.
func AddLesson(d *domain.Draft, m, w int) (*domain.Draft, error) {
	out := Clone(d)
	week, err := weekRef(out, m, w)
	if err != nil {
		return nil, err
	}
	week.Lessons = append(week.Lessons, domain.Lesson{
		ID:          newID(),
		Title:       DefaultLessonTitle,
		Order:       len(week.Lessons) + 1,
		ContentType: domain.ContentVideo,
	})
	return out, nil
}

// UpdateField sets one named field on the addressed node.
func UpdateField(d *domain.Draft, addr Address, field string, value any) (*domain.Draft, error) {
	out := Clone(d)
	switch addr.Level() {
	case LevelLesson:
		if addr.Week == nil {
			return nil, ErrInvalidAddress
		}
		lesson, err := lessonRef(out, addr.Module, *addr.Week, *addr.Lesson)
		if err != nil {
			return nil, err
		}
		if err := setLessonField(lesson, field, value); err != nil {
			return nil, err
		}
	case LevelWeek:
		week, err := weekRef(out, addr.Module, *addr.Week)
		if err != nil {
			return nil, err
		}
		if err := setBranchField(&week.Title, &week.Order, field, value); err != nil {
			return nil, err
		}
	default:
		mod, err := moduleRef(out, addr.Module)
		if err != nil {
			return nil, err
		}
		if err := setBranchField(&mod.Title, &mod.Order, field, value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RemoveNode deletes the addressed node from its parent. Sibling order values are
// left as they are. The stable IDs of every lesson that left the tree are returned
// so pending uploads bound to them can be released.
func RemoveNode(d *domain.Draft, addr Address) (*domain.Draft, []string, error) {
	out := Clone(d)
	var removed []string
	switch addr.Level() {
	case LevelLesson:
		if addr.Week == nil {
			return nil, nil, ErrInvalidAddress
		}
		week, err := weekRef(out, addr.Module, *addr.Week)
		if err != nil {
			return nil, nil, err
		}
		li := *addr.Lesson
		if li < 0 || li >= len(week.Lessons) {
			return nil, nil, fmt.Errorf("%w: lesson %s", ErrNodeNotFound, addr)
		}
		removed = append(removed, week.Lessons[li].ID)
		week.Lessons = append(week.Lessons[:li], week.Lessons[li+1:]...)
	case LevelWeek:
		mod, err := moduleRef(out, addr.Module)
		if err != nil {
			return nil, nil, err
		}
		wi := *addr.Week
		if wi < 0 || wi >= len(mod.Weeks) {
			return nil, nil, fmt.Errorf("%w: week %s", ErrNodeNotFound, addr)
		}
		removed = lessonIDsOfWeek(mod.Weeks[wi])
		mod.Weeks = append(mod.Weeks[:wi], mod.Weeks[wi+1:]...)
	default:
		mi := addr.Module
		if mi < 0 || mi >= len(out.Modules) {
			return nil, nil, fmt.Errorf("%w: module %s", ErrNodeNotFound, addr)
		}
		for _, w := range out.Modules[mi].Weeks {
			removed = append(removed, lessonIDsOfWeek(w)...)
		}
		out.Modules = append(out.Modules[:mi], out.Modules[mi+1:]...)
	}
	return out, removed, nil
}

// CourseFields carries a partial update of the draft's scalar course fields.
type CourseFields struct {
	Title       *string  `json:"title"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Description *string  `json:"description"`
}

// SetCourseFields applies the non-nil fields of f.
func SetCourseFields(d *domain.Draft, f CourseFields) (*domain.Draft, error) {
	out := Clone(d)
	if f.Price != nil && (*f.Price < 0 || math.IsNaN(*f.Price) || math.IsInf(*f.Price, 0)) {
		return nil, fmt.Errorf("%w: price must be a non-negative number", ErrInvalidValue)
	}
	if f.Title != nil {
		out.Title = *f.Title
	}
	if f.Category != nil {
		out.Category = *f.Category
	}
	if f.Price != nil {
		out.Price = *f.Price
	}
	if f.Description != nil {
		out.Description = *f.Description
	}
	return out, nil
}

// LessonAtPosition returns a copy of the lesson at m/w/l.
func LessonAtPosition(d *domain.Draft, m, w, l int) (domain.Lesson, error) {
	lesson, err := lessonRef(d, m, w, l)
	if err != nil {
		return domain.Lesson{}, err
	}
	return *lesson, nil
}

// LessonIDs returns the set of stable lesson IDs currently in the tree.
func LessonIDs(d *domain.Draft) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, m := range d.Modules {
		for _, w := range m.Weeks {
			for _, l := range w.Lessons {
				ids[l.ID] = struct{}{}
			}
		}
	}
	return ids
}

func lessonIDsOfWeek(w domain.Week) []string {
	ids := make([]string, 0, len(w.Lessons))
	for _, l := range w.Lessons {
		ids = append(ids, l.ID)
	}
	return ids
}

func moduleRef(d *domain.Draft, m int) (*domain.Module, error) {
	if m < 0 || m >= len(d.Modules) {
		return nil, fmt.Errorf("%w: module %d", ErrNodeNotFound, m)
	}
	return &d.Modules[m], nil
}

func weekRef(d *domain.Draft, m, w int) (*domain.Week, error) {
	mod, err := moduleRef(d, m)
	if err != nil {
		return nil, err
	}
	if w < 0 || w >= len(mod.Weeks) {
		return nil, fmt.Errorf("%w: week %d of module %d", ErrNodeNotFound, w, m)
	}
	return &mod.Weeks[w], nil
}

func lessonRef(d *domain.Draft, m, w, l int) (*domain.Lesson, error) {
	week, err := weekRef(d, m, w)
	if err != nil {
		return nil, err
	}
	if l < 0 || l >= len(week.Lessons) {
		return nil, fmt.Errorf("%w: lesson %d of week %d, module %d", ErrNodeNotFound, l, w, m)
	}
	return &week.Lessons[l], nil
}

func setBranchField(title *string, order *int, field string, value any) error {
	switch field {
	case "title":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		*title = s
	case "order":
		n, err := asInt(field, value)
		if err != nil {
			return err
		}
		*order = n
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

func setLessonField(l *domain.Lesson, field string, value any) error {
	switch field {
	case "title", "video_url", "content", "resource_link":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		switch field {
		case "title":
			l.Title = s
		case "video_url":
			l.VideoURL = s
		case "content":
			l.Content = s
		case "resource_link":
			l.ResourceLink = s
		}
	case "content_type":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		ct := domain.ContentType(s)
		if !ct.Valid() {
			return fmt.Errorf("%w: content_type %q", ErrInvalidValue, s)
		}
		l.ContentType = ct
	case "order":
		n, err := asInt(field, value)
		if err != nil {
			return err
		}
		l.Order = n
	case "question_count":
		n, err := asInt(field, value)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: question_count must not be negative", ErrInvalidValue)
		}
		l.QuestionCount = n
	case "passing_score":
		n, err := asInt(field, value)
		if err != nil {
			return err
		}
		if n < 0 || n > 100 {
			return fmt.Errorf("%w: passing_score must be between 0 and 100", ErrInvalidValue)
		}
		l.PassingScore = n
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

func asString(field string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("%w: %s must be a string", ErrInvalidValue, field)
}

// asInt accepts the shapes a form or JSON body can produce for a number.
func asInt(field string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int(v), nil
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), nil
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be a whole number", ErrInvalidValue, field)
}
