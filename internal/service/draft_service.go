package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"skillsphere/course-studio/internal/curriculum"
	"skillsphere/course-studio/internal/domain"
	"skillsphere/course-studio/internal/lock"
	"skillsphere/course-studio/internal/logger"
	"skillsphere/course-studio/internal/repository"
	"skillsphere/course-studio/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrDraftNotFound     = errors.New("draft not found")
	ErrDraftAccessDenied = errors.New("access denied to this draft")
	ErrDraftSubmitted    = errors.New("draft has already been deployed")
	ErrDraftConflict     = errors.New("draft was modified concurrently, reload and retry")
	ErrUploadNotFound    = errors.New("no pending file for this slot")
	ErrSlotNotOffered    = errors.New("slot is not available for this lesson's content type")
	ErrFileTooLarge      = errors.New("file exceeds the upload size limit")
	ErrEmptyFile         = errors.New("file is empty")
	ErrStorageFailed     = errors.New("failed to store file")
	ErrDeployNotRecorded = errors.New("course was deployed but the draft could not be marked submitted, do not deploy again")
)

// markSubmittedAttempts bounds retries of the post-deploy draft write.
const markSubmittedAttempts = 5

// CourseBackend is the part of the SkillSphere API the studio depends on.
type CourseBackend interface {
	FetchCourse(ctx context.Context, token, slug string) (*curriculum.CourseRecord, error)
	Submit(ctx context.Context, token string, sub *curriculum.Submission) (*curriculum.CourseRecord, error)
	MediaURL(p string) string
}

// DraftRef names the draft a call acts on. A non-zero Revision must match the
// stored draft, otherwise the call fails with ErrDraftConflict.
type DraftRef struct {
	AuthorID string
	DraftID  primitive.ObjectID
	Revision int64
}

// SlotTarget addresses a pending file slot. Key, when set, is a positional key
// such as "m0-w1-l2-video" and takes precedence over the indices.
type SlotTarget struct {
	Slot   domain.Slot
	Module int
	Week   int
	Lesson int
	Key    string
}

// IncomingFile is a file selected by the author.
type IncomingFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// DraftDetails is a draft together with its pending uploads.
type DraftDetails struct {
	Draft   *domain.Draft
	Uploads []domain.PendingUpload
}

// DeployResult reports the course the backend created or replaced.
type DeployResult struct {
	Draft  *domain.Draft
	Course *curriculum.CourseRecord
}

// Options tunes the draft service.
type Options struct {
	MaxUploadBytes int64 // 0 disables the check
}

// --- Service Interface ---
type DraftService interface {
	CreateDraft(ctx context.Context, authorID string) (*domain.Draft, error)
	ImportCourse(ctx context.Context, authorID, token, slug string) (*domain.Draft, error)
	GetDraft(ctx context.Context, ref DraftRef) (*DraftDetails, error)
	ListDrafts(ctx context.Context, authorID string) ([]domain.Draft, error)
	UpdateCourse(ctx context.Context, ref DraftRef, fields curriculum.CourseFields) (*domain.Draft, error)
	DeleteDraft(ctx context.Context, ref DraftRef) error

	// Tree editing
	AddModule(ctx context.Context, ref DraftRef) (*domain.Draft, error)
	AddWeek(ctx context.Context, ref DraftRef, module int) (*domain.Draft, error)
	AddLesson(ctx context.Context, ref DraftRef, module, week int) (*domain.Draft, error)
	UpdateField(ctx context.Context, ref DraftRef, addr curriculum.Address, field string, value any) (*domain.Draft, error)
	RemoveNode(ctx context.Context, ref DraftRef, addr curriculum.Address) (*domain.Draft, error)

	// Pending files
	AttachFile(ctx context.Context, ref DraftRef, target SlotTarget, file IncomingFile) (*domain.PendingUpload, error)
	ClearFile(ctx context.Context, ref DraftRef, target SlotTarget) error
	PreviewURL(ctx context.Context, ref DraftRef, target SlotTarget) (string, error)

	Deploy(ctx context.Context, ref DraftRef, token string) (*DeployResult, error)
}

// --- Service Implementation ---

type draftService struct {
	drafts  repository.DraftRepository
	uploads repository.UploadRepository
	files   storage.FileStorage
	courses CourseBackend
	locker  lock.Locker
	log     *logger.Logger
	opts    Options
}

// NewDraftService creates a new instance of draftService.
func NewDraftService(
	drafts repository.DraftRepository,
	uploads repository.UploadRepository,
	files storage.FileStorage,
	courses CourseBackend,
	locker lock.Locker,
	log *logger.Logger,
	opts Options,
) DraftService {
	return &draftService{
		drafts:  drafts,
		uploads: uploads,
		files:   files,
		courses: courses,
		locker:  locker,
		log:     log.With("service", "DraftService"),
		opts:    opts,
	}
}

// === Drafts ===

func (s *draftService) CreateDraft(ctx context.Context, authorID string) (*domain.Draft, error) {
	if authorID == "" {
		return nil, errors.New("author ID is required")
	}
	d := curriculum.NewDraft(authorID)
	if _, err := s.drafts.Create(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("draft created", "draftId", d.ID.Hex(), "authorId", authorID)
	return d, nil
}

// ImportCourse loads an existing course and opens it as an edit-mode draft.
func (s *draftService) ImportCourse(ctx context.Context, authorID, token, slug string) (*domain.Draft, error) {
	if authorID == "" || strings.TrimSpace(slug) == "" {
		return nil, errors.New("author ID and course slug are required")
	}
	rec, err := s.courses.FetchCourse(ctx, token, slug)
	if err != nil {
		return nil, err
	}
	d := curriculum.Hydrate(rec, authorID, s.courses.MediaURL)
	if d.CourseSlug == "" {
		d.CourseSlug = slug
	}
	if _, err := s.drafts.Create(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("course imported", "draftId", d.ID.Hex(), "slug", d.CourseSlug, "modules", len(d.Modules))
	return d, nil
}

func (s *draftService) GetDraft(ctx context.Context, ref DraftRef) (*DraftDetails, error) {
	d, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	uploads, err := s.uploads.GetByDraft(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	return &DraftDetails{Draft: d, Uploads: liveUploads(d, uploads)}, nil
}

func (s *draftService) ListDrafts(ctx context.Context, authorID string) ([]domain.Draft, error) {
	if authorID == "" {
		return nil, errors.New("author ID is required")
	}
	return s.drafts.GetByAuthor(ctx, authorID)
}

func (s *draftService) UpdateCourse(ctx context.Context, ref DraftRef, fields curriculum.CourseFields) (*domain.Draft, error) {
	return s.mutate(ctx, ref, func(d *domain.Draft) (*domain.Draft, error) {
		return curriculum.SetCourseFields(d, fields)
	})
}

// DeleteDraft discards a draft together with its pending files.
func (s *draftService) DeleteDraft(ctx context.Context, ref DraftRef) error {
	d, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.ensureIdle(ctx, d); err != nil {
		return err
	}
	removed, err := s.uploads.DeleteByDraft(ctx, d.ID)
	if err != nil {
		return err
	}
	s.dropObjects(ctx, removed)
	if err := s.drafts.Delete(ctx, d.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDraftNotFound
		}
		return err
	}
	s.log.Info("draft deleted", "draftId", d.ID.Hex(), "pendingFiles", len(removed))
	return nil
}

// === Tree editing ===

func (s *draftService) AddModule(ctx context.Context, ref DraftRef) (*domain.Draft, error) {
	return s.mutate(ctx, ref, func(d *domain.Draft) (*domain.Draft, error) {
		return curriculum.AddModule(d), nil
	})
}

func (s *draftService) AddWeek(ctx context.Context, ref DraftRef, module int) (*domain.Draft, error) {
	return s.mutate(ctx, ref, func(d *domain.Draft) (*domain.Draft, error) {
		return curriculum.AddWeek(d, module)
	})
}

func (s *draftService) AddLesson(ctx context.Context, ref DraftRef, module, week int) (*domain.Draft, error) {
	return s.mutate(ctx, ref, func(d *domain.Draft) (*domain.Draft, error) {
		return curriculum.AddLesson(d, module, week)
	})
}

func (s *draftService) UpdateField(ctx context.Context, ref DraftRef, addr curriculum.Address, field string, value any) (*domain.Draft, error) {
	return s.mutate(ctx, ref, func(d *domain.Draft) (*domain.Draft, error) {
		return curriculum.UpdateField(d, addr, field, value)
	})
}

// RemoveNode deletes a module, week or lesson and releases the pending files
// bound to every lesson that left the tree.
func (s *draftService) RemoveNode(ctx context.Context, ref DraftRef, addr curriculum.Address) (*domain.Draft, error) {
	var removedLessons []string
	d, err := s.mutate(ctx, ref, func(d *domain.Draft) (*domain.Draft, error) {
		out, removed, err := curriculum.RemoveNode(d, addr)
		removedLessons = removed
		return out, err
	})
	if err != nil {
		return nil, err
	}
	if len(removedLessons) > 0 {
		pruned, err := s.uploads.DeleteByLessons(ctx, d.ID, removedLessons)
		if err != nil {
			// The draft is saved; leftover records are skipped at deploy time
			s.log.Warn("failed to prune pending uploads", "draftId", d.ID.Hex(), "error", err)
		} else {
			s.dropObjects(ctx, pruned)
		}
	}
	return d, nil
}

// === Pending files ===

// AttachFile stores a file for a slot, replacing whatever was pending there.
func (s *draftService) AttachFile(ctx context.Context, ref DraftRef, target SlotTarget, file IncomingFile) (*domain.PendingUpload, error) {
	if file.Body == nil || file.Size == 0 {
		return nil, ErrEmptyFile
	}
	if s.opts.MaxUploadBytes > 0 && file.Size > s.opts.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}

	d, err := s.loadIdle(ctx, ref)
	if err != nil {
		return nil, err
	}
	slotRef, err := s.resolveSlot(d, target, true)
	if err != nil {
		return nil, err
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectKey := path.Join("drafts", d.ID.Hex(), uuid.NewString()+strings.ToLower(filepath.Ext(file.Name)))
	if err := s.files.PutObject(ctx, objectKey, file.Body, file.Size, contentType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	upload := &domain.PendingUpload{
		DraftID:     d.ID,
		AuthorID:    d.AuthorID,
		LessonID:    slotRef.LessonID,
		Slot:        slotRef.Slot,
		ObjectKey:   objectKey,
		FileName:    filepath.Base(file.Name),
		ContentType: contentType,
		Size:        file.Size,
	}
	previous, err := s.uploads.Upsert(ctx, upload)
	if err != nil {
		_ = s.files.DeleteObject(ctx, objectKey)
		return nil, err
	}
	if previous != nil {
		s.dropObjects(ctx, []domain.PendingUpload{*previous})
	}
	s.log.Info("pending file attached", "draftId", d.ID.Hex(), "slot", slotRef.String(), "size", file.Size)
	return upload, nil
}

// ClearFile drops the pending file of a slot.
func (s *draftService) ClearFile(ctx context.Context, ref DraftRef, target SlotTarget) error {
	d, err := s.loadIdle(ctx, ref)
	if err != nil {
		return err
	}
	slotRef, err := s.resolveSlot(d, target, false)
	if err != nil {
		return err
	}
	upload, err := s.uploads.GetBySlot(ctx, d.ID, slotRef.LessonID, slotRef.Slot)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUploadNotFound
		}
		return err
	}
	if err := s.uploads.Delete(ctx, upload.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	s.dropObjects(ctx, []domain.PendingUpload{*upload})
	return nil
}

// PreviewURL returns a short-lived link to a pending file.
func (s *draftService) PreviewURL(ctx context.Context, ref DraftRef, target SlotTarget) (string, error) {
	d, err := s.load(ctx, ref)
	if err != nil {
		return "", err
	}
	slotRef, err := s.resolveSlot(d, target, false)
	if err != nil {
		return "", err
	}
	upload, err := s.uploads.GetBySlot(ctx, d.ID, slotRef.LessonID, slotRef.Slot)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUploadNotFound
		}
		return "", err
	}
	return s.files.GeneratePresignedDownloadURL(ctx, upload.ObjectKey, storage.DefaultPresignedURLExpiry)
}

// === Deploy ===

// Deploy assembles the draft and its pending files into one create or update
// request. Only one deploy per draft runs at a time, and edits are refused while
// it does. On failure the draft and its pending files are left exactly as they were.
func (s *draftService) Deploy(ctx context.Context, ref DraftRef, token string) (*DeployResult, error) {
	// Unknown or foreign drafts never take the lock
	if _, err := s.load(ctx, ref); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, ref.DraftID.Hex())
	if err != nil {
		return nil, err
	}
	defer release()

	// Read again under the lock: a deploy that finished meanwhile has marked it submitted
	d, err := s.loadEditable(ctx, ref)
	if err != nil {
		return nil, err
	}
	uploads, err := s.uploads.GetByDraft(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	sub, err := curriculum.Assemble(d, s.registryFrom(uploads))
	if err != nil {
		return nil, err
	}

	s.log.Info("deploying draft", "draftId", d.ID.Hex(), "method", sub.Method, "slug", sub.Slug, "files", len(sub.Files))
	rec, err := s.courses.Submit(ctx, token, sub)
	if err != nil {
		return nil, err
	}

	// The backend holds the course now. Record that even if the caller went away.
	ctx = context.WithoutCancel(ctx)
	submitted, err := s.markSubmitted(ctx, d, rec)
	if err != nil {
		// Pending files stay; the draft still names no course
		s.log.Error("course deployed but draft could not be marked submitted",
			"draftId", d.ID.Hex(), "slug", rec.Slug, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDeployNotRecorded, err)
	}
	released, err := s.uploads.DeleteByDraft(ctx, d.ID)
	if err != nil {
		s.log.Warn("failed to release pending uploads", "draftId", d.ID.Hex(), "error", err)
	} else {
		s.dropObjects(ctx, released)
	}
	return &DeployResult{Draft: submitted, Course: rec}, nil
}

// markSubmitted stores the deployed state, re-reading the draft when a
// concurrent write bumped its revision.
func (s *draftService) markSubmitted(ctx context.Context, d *domain.Draft, rec *curriculum.CourseRecord) (*domain.Draft, error) {
	var err error
	for attempt := 0; attempt < markSubmittedAttempts; attempt++ {
		if rec.Slug != "" {
			d.CourseSlug = rec.Slug
		}
		d.Status = domain.DraftStatusSubmitted
		err = s.drafts.Update(ctx, d)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		if d, err = s.drafts.GetByID(ctx, d.ID); err != nil {
			return nil, err
		}
	}
	return nil, ErrDraftConflict
}

// --- helpers ---

func (s *draftService) load(ctx context.Context, ref DraftRef) (*domain.Draft, error) {
	if ref.AuthorID == "" || ref.DraftID == primitive.NilObjectID {
		return nil, ErrDraftNotFound
	}
	d, err := s.drafts.GetByID(ctx, ref.DraftID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	if d.AuthorID != ref.AuthorID {
		return nil, ErrDraftAccessDenied
	}
	if ref.Revision != 0 && ref.Revision != d.Revision {
		return nil, ErrDraftConflict
	}
	return d, nil
}

func (s *draftService) loadEditable(ctx context.Context, ref DraftRef) (*domain.Draft, error) {
	d, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if d.Status == domain.DraftStatusSubmitted {
		return nil, ErrDraftSubmitted
	}
	return d, nil
}

// loadIdle loads an editable draft no deploy is running for.
func (s *draftService) loadIdle(ctx context.Context, ref DraftRef) (*domain.Draft, error) {
	d, err := s.loadEditable(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.ensureIdle(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *draftService) ensureIdle(ctx context.Context, d *domain.Draft) error {
	busy, err := s.locker.Held(ctx, d.ID.Hex())
	if err != nil {
		return err
	}
	if busy {
		return lock.ErrSubmissionInFlight
	}
	return nil
}

// mutate applies one tree operation and persists the result.
func (s *draftService) mutate(ctx context.Context, ref DraftRef, op func(*domain.Draft) (*domain.Draft, error)) (*domain.Draft, error) {
	d, err := s.loadIdle(ctx, ref)
	if err != nil {
		return nil, err
	}
	next, err := op(d)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Update(ctx, next); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrDraftConflict
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	return next, nil
}

// resolveSlot turns a target into a stable slot reference. When attaching, the
// slot must be one the lesson's content type offers.
func (s *draftService) resolveSlot(d *domain.Draft, t SlotTarget, attaching bool) (curriculum.SlotRef, error) {
	if t.Key != "" {
		m, w, l, slot, err := curriculum.ParsePositionalKey(t.Key)
		if err != nil {
			return curriculum.SlotRef{}, err
		}
		t.Module, t.Week, t.Lesson, t.Slot = m, w, l, slot
	}
	if t.Slot == domain.SlotThumbnail {
		return curriculum.ThumbnailRef(), nil
	}
	ref, err := curriculum.SlotRefAt(d, t.Module, t.Week, t.Lesson, t.Slot)
	if err != nil {
		return curriculum.SlotRef{}, err
	}
	if attaching {
		lesson, _ := curriculum.LessonAtPosition(d, t.Module, t.Week, t.Lesson)
		if !slotOffered(lesson.ContentType, t.Slot) {
			return curriculum.SlotRef{}, ErrSlotNotOffered
		}
	}
	return ref, nil
}

func slotOffered(ct domain.ContentType, slot domain.Slot) bool {
	for _, s := range curriculum.SlotsFor(ct) {
		if s == slot {
			return true
		}
	}
	return false
}

// registryFrom rebuilds the in-memory registry from stored upload records. The
// bytes are only read when the submission is sent.
func (s *draftService) registryFrom(uploads []domain.PendingUpload) *curriculum.Registry {
	reg := curriculum.NewRegistry()
	for _, u := range uploads {
		objectKey := u.ObjectKey
		reg.Set(curriculum.SlotRef{LessonID: u.LessonID, Slot: u.Slot}, curriculum.File{
			Name:        u.FileName,
			ContentType: u.ContentType,
			Size:        u.Size,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				return s.files.OpenObject(ctx, objectKey)
			},
		})
	}
	return reg
}

// dropObjects deletes stored bytes of released uploads. Failures only leave
// unreferenced objects behind, so they are logged.
func (s *draftService) dropObjects(ctx context.Context, uploads []domain.PendingUpload) {
	for _, u := range uploads {
		if err := s.files.DeleteObject(ctx, u.ObjectKey); err != nil {
			s.log.Warn("failed to delete pending object", "key", u.ObjectKey, "error", err)
		}
	}
}

// liveUploads filters out records whose lesson is no longer in the tree.
func liveUploads(d *domain.Draft, uploads []domain.PendingUpload) []domain.PendingUpload {
	live := curriculum.LessonIDs(d)
	out := make([]domain.PendingUpload, 0, len(uploads))
	for _, u := range uploads {
		if u.Slot == domain.SlotThumbnail {
			out = append(out, u)
			continue
		}
		if _, ok := live[u.LessonID]; ok {
			out = append(out, u)
		}
	}
	return out
}
