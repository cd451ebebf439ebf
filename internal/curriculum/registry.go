package curriculum

import (
	"context"
	"fmt"
	"io"
	"sort"

	"skillsphere/course-studio/internal/domain"
)

// SlotRef identifies an attachment point by the lesson's stable identity, so
// reordering or deleting siblings never repoints a pending file.
type SlotRef struct {
	LessonID string
	Slot     domain.Slot
}

// ThumbnailRef is the course-level thumbnail slot.
func ThumbnailRef() SlotRef { return SlotRef{Slot: domain.SlotThumbnail} }

func (r SlotRef) String() string {
	if r.LessonID == "" {
		return string(r.Slot)
	}
	return r.LessonID + "/" + string(r.Slot)
}

// SlotRefAt resolves a positional path to the stable slot reference of that lesson.
func SlotRefAt(d *domain.Draft, m, w, l int, slot domain.Slot) (SlotRef, error) {
	if !slot.LessonSlot() {
		return SlotRef{}, fmt.Errorf("%w: slot %q is not a lesson slot", ErrInvalidValue, slot)
	}
	lesson, err := lessonRef(d, m, w, l)
	if err != nil {
		return SlotRef{}, err
	}
	return SlotRef{LessonID: lesson.ID, Slot: slot}, nil
}

// File is a pending binary. Open is called once, when the submission is sent.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func(ctx context.Context) (io.ReadCloser, error)
}

// Registry maps slots to files selected by the author but not yet transmitted.
// It is plain local state and is not safe for concurrent use.
type Registry struct {
	files map[SlotRef]File
}

func NewRegistry() *Registry {
	return &Registry{files: make(map[SlotRef]File)}
}

// Set stores or replaces the file for ref.
func (r *Registry) Set(ref SlotRef, f File) { r.files[ref] = f }

// Clear removes the entry for ref, if any.
func (r *Registry) Clear(ref SlotRef) { delete(r.files, ref) }

// Has drives "swap asset" versus "upload" in the editor.
func (r *Registry) Has(ref SlotRef) bool {
	_, ok := r.files[ref]
	return ok
}

func (r *Registry) Get(ref SlotRef) (File, bool) {
	f, ok := r.files[ref]
	return f, ok
}

func (r *Registry) Len() int { return len(r.files) }

// Prune drops lesson entries whose lesson is not in live and returns what it dropped.
// The thumbnail slot is never pruned.
func (r *Registry) Prune(live map[string]struct{}) []SlotRef {
	var dropped []SlotRef
	for ref := range r.files {
		if ref.LessonID == "" {
			continue
		}
		if _, ok := live[ref.LessonID]; !ok {
			dropped = append(dropped, ref)
			delete(r.files, ref)
		}
	}
	sortRefs(dropped)
	return dropped
}

// Refs lists every entry in a stable order.
func (r *Registry) Refs() []SlotRef {
	refs := make([]SlotRef, 0, len(r.files))
	for ref := range r.files {
		refs = append(refs, ref)
	}
	sortRefs(refs)
	return refs
}

func sortRefs(refs []SlotRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].LessonID != refs[j].LessonID {
			return refs[i].LessonID < refs[j].LessonID
		}
		return refs[i].Slot < refs[j].Slot
	})
}
