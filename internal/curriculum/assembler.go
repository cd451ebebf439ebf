package curriculum

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"skillsphere/course-studio/internal/domain"

	"github.com/go-playground/validator/v10"
)

// ModulesPart is the multipart part carrying the JSON curriculum tree.
const ModulesPart = "modules"

// ValidationError is a client-side rejection raised before any network call.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return strings.Join(msgs, "; ")
}

// deployGate holds the fields that must be filled in before a deploy.
type deployGate struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
}

var validate = validator.New()

// Validate checks the draft is ready to be sent.
func Validate(d *domain.Draft) error {
	gate := deployGate{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
	}
	err := validate.Struct(gate)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		name := strings.ToLower(fe.Field())
		verr.Fields[name] = fmt.Sprintf("Course %s is required", name)
	}
	return verr
}

// Field is one scalar multipart part.
type Field struct {
	Name  string
	Value string
}

// FilePart is one binary multipart part.
type FilePart struct {
	Name string
	File File
}

// Submission is everything needed for the single create/update request.
type Submission struct {
	Method  string // http.MethodPost to create, http.MethodPut to replace
	Slug    string // Target course for PUT
	Fields  []Field
	Modules []ModulePayload
	Files   []FilePart
}

// ModulesJSON encodes the curriculum tree for the modules part.
func (s *Submission) ModulesJSON() ([]byte, error) {
	return json.Marshal(s.Modules)
}

// FormData returns the scalar parts plus the encoded modules part.
func (s *Submission) FormData() (map[string]string, error) {
	raw, err := s.ModulesJSON()
	if err != nil {
		return nil, err
	}
	form := make(map[string]string, len(s.Fields)+1)
	for _, f := range s.Fields {
		form[f.Name] = f.Value
	}
	form[ModulesPart] = string(raw)
	return form, nil
}

// Assemble validates the draft, walks the tree and correlates every lesson with
// the registry by computing its positional keys. Registry entries whose lesson is
// no longer in the tree are not sent.
func Assemble(d *domain.Draft, reg *Registry) (*Submission, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = NewRegistry()
	}

	sub := &Submission{
		Method: http.MethodPost,
		Fields: []Field{
			{Name: "title", Value: d.Title},
			{Name: "category", Value: d.Category},
			{Name: "price", Value: strconv.FormatFloat(d.Price, 'f', 2, 64)},
			{Name: "description", Value: d.Description},
		},
		Modules: make([]ModulePayload, 0, len(d.Modules)),
	}
	if d.IsEdit() {
		sub.Method = http.MethodPut
		sub.Slug = d.CourseSlug
	}

	if f, ok := reg.Get(ThumbnailRef()); ok {
		sub.Files = append(sub.Files, FilePart{Name: ThumbnailPart, File: f})
	}

	for mi, m := range d.Modules {
		mp := ModulePayload{ID: m.BackendID, Title: m.Title, Order: m.Order, Weeks: make([]WeekPayload, 0, len(m.Weeks))}
		for wi, w := range m.Weeks {
			wp := WeekPayload{ID: w.BackendID, Title: w.Title, Order: w.Order, Lessons: make([]LessonPayload, 0, len(w.Lessons))}
			for li, l := range w.Lessons {
				lp := renderLesson(l)
				if f, ok := reg.Get(SlotRef{LessonID: l.ID, Slot: domain.SlotVideo}); ok {
					key := PositionalKey(mi, wi, li, domain.SlotVideo)
					lp.TempVideoKey = &key
					sub.Files = append(sub.Files, FilePart{Name: key, File: f})
				}
				if f, ok := reg.Get(SlotRef{LessonID: l.ID, Slot: domain.SlotDoc}); ok {
					key := PositionalKey(mi, wi, li, domain.SlotDoc)
					lp.TempDocKey = &key
					sub.Files = append(sub.Files, FilePart{Name: key, File: f})
				}
				wp.Lessons = append(wp.Lessons, lp)
			}
			mp.Weeks = append(mp.Weeks, wp)
		}
		sub.Modules = append(sub.Modules, mp)
	}
	return sub, nil
}
