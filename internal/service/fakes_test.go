package service

import (
	"context"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"skillsphere/course-studio/internal/curriculum"
	"skillsphere/course-studio/internal/domain"
	"skillsphere/course-studio/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeDraftRepo mirrors the revision semantics of the Mongo repository.
type fakeDraftRepo struct {
	mu        sync.Mutex
	drafts    map[primitive.ObjectID]domain.Draft
	updateErr error
}

func newFakeDraftRepo() *fakeDraftRepo {
	return &fakeDraftRepo{drafts: make(map[primitive.ObjectID]domain.Draft)}
}

func (r *fakeDraftRepo) Create(_ context.Context, d *domain.Draft) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = primitive.NewObjectID()
	d.Revision = 1
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt
	if d.Status == "" {
		d.Status = domain.DraftStatusEditing
	}
	r.drafts[d.ID] = *curriculum.Clone(d)
	return d.ID, nil
}

func (r *fakeDraftRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return curriculum.Clone(&d), nil
}

func (r *fakeDraftRepo) GetByAuthor(_ context.Context, authorID string) ([]domain.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Draft{}
	for _, d := range r.drafts {
		if d.AuthorID == authorID {
			out = append(out, *curriculum.Clone(&d))
		}
	}
	return out, nil
}

func (r *fakeDraftRepo) Update(_ context.Context, d *domain.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.drafts[d.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Revision != d.Revision {
		return repository.ErrConflict
	}
	d.Revision++
	d.UpdatedAt = time.Now().UTC()
	r.drafts[d.ID] = *curriculum.Clone(d)
	return nil
}

func (r *fakeDraftRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drafts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.drafts, id)
	return nil
}

// bump simulates a concurrent writer.
func (r *fakeDraftRepo) bump(id primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.drafts[id]
	d.Revision++
	r.drafts[id] = d
}

func (r *fakeDraftRepo) failUpdates(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateErr = err
}

type fakeUploadRepo struct {
	mu      sync.Mutex
	uploads map[primitive.ObjectID]domain.PendingUpload
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{uploads: make(map[primitive.ObjectID]domain.PendingUpload)}
}

func (r *fakeUploadRepo) Upsert(_ context.Context, u *domain.PendingUpload) (*domain.PendingUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.UploadedAt = time.Now().UTC()
	for id, existing := range r.uploads {
		if existing.DraftID == u.DraftID && existing.LessonID == u.LessonID && existing.Slot == u.Slot {
			u.ID = id
			r.uploads[id] = *u
			prev := existing
			return &prev, nil
		}
	}
	u.ID = primitive.NewObjectID()
	r.uploads[u.ID] = *u
	return nil, nil
}

func (r *fakeUploadRepo) GetByDraft(_ context.Context, draftID primitive.ObjectID) ([]domain.PendingUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matching(func(u domain.PendingUpload) bool { return u.DraftID == draftID }), nil
}

func (r *fakeUploadRepo) GetBySlot(_ context.Context, draftID primitive.ObjectID, lessonID string, slot domain.Slot) (*domain.PendingUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.uploads {
		if u.DraftID == draftID && u.LessonID == lessonID && u.Slot == slot {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUploadRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.uploads[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.uploads, id)
	return nil
}

func (r *fakeUploadRepo) DeleteByLessons(_ context.Context, draftID primitive.ObjectID, lessonIDs []string) ([]domain.PendingUpload, error) {
	set := make(map[string]bool, len(lessonIDs))
	for _, id := range lessonIDs {
		set[id] = true
	}
	return r.remove(func(u domain.PendingUpload) bool { return u.DraftID == draftID && set[u.LessonID] }), nil
}

func (r *fakeUploadRepo) DeleteByDraft(_ context.Context, draftID primitive.ObjectID) ([]domain.PendingUpload, error) {
	return r.remove(func(u domain.PendingUpload) bool { return u.DraftID == draftID }), nil
}

func (r *fakeUploadRepo) remove(match func(domain.PendingUpload) bool) []domain.PendingUpload {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := r.matching(match)
	for _, u := range removed {
		delete(r.uploads, u.ID)
	}
	return removed
}

func (r *fakeUploadRepo) matching(match func(domain.PendingUpload) bool) []domain.PendingUpload {
	var out []domain.PendingUpload
	for _, u := range r.uploads {
		if match(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObjectKey < out[j].ObjectKey })
	return out
}

// fakeBackend records every submission it receives. With gate set, Submit
// signals entered and then waits for gate to close.
type fakeBackend struct {
	gate    chan struct{}
	entered chan struct{}

	mu      sync.Mutex
	calls   int
	sub     *curriculum.Submission
	files   map[string]string // part name -> content read at submit time
	err     error
	course  *curriculum.CourseRecord
	fetched *curriculum.CourseRecord
}

func (b *fakeBackend) FetchCourse(_ context.Context, _ string, slug string) (*curriculum.CourseRecord, error) {
	if b.fetched == nil {
		return nil, b.err
	}
	return b.fetched, nil
}

func (b *fakeBackend) Submit(ctx context.Context, _ string, sub *curriculum.Submission) (*curriculum.CourseRecord, error) {
	if b.gate != nil {
		b.entered <- struct{}{}
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.sub = sub
	b.files = make(map[string]string)
	for _, fp := range sub.Files {
		rc, err := fp.File.Open(ctx)
		if err != nil {
			return nil, err
		}
		data, _ := io.ReadAll(rc)
		_ = rc.Close()
		b.files[fp.Name] = string(data)
	}
	if b.err != nil {
		return nil, b.err
	}
	if b.course != nil {
		return b.course, nil
	}
	slug := sub.Slug
	if sub.Method == http.MethodPost {
		slug = "created-course"
	}
	return &curriculum.CourseRecord{ID: 99, Slug: slug}, nil
}

// hold makes the next submissions block until the returned func is called.
func (b *fakeBackend) hold() (open func()) {
	b.gate = make(chan struct{})
	b.entered = make(chan struct{}, 4)
	var once sync.Once
	return func() { once.Do(func() { close(b.gate) }) }
}

func (b *fakeBackend) submitCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// queueLocker blocks in Acquire until the current holder releases, the way a
// caller retrying a busy lock would.
type queueLocker struct {
	mu   sync.Mutex
	busy atomic.Bool
}

func (l *queueLocker) Acquire(_ context.Context, _ string) (func(), error) {
	l.mu.Lock()
	l.busy.Store(true)
	var once sync.Once
	return func() {
		once.Do(func() {
			l.busy.Store(false)
			l.mu.Unlock()
		})
	}, nil
}

func (l *queueLocker) Held(_ context.Context, _ string) (bool, error) {
	return l.busy.Load(), nil
}

func (b *fakeBackend) MediaURL(p string) string {
	if p == "" {
		return ""
	}
	return "https://media.example.com" + p
}
