package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"skillsphere/course-studio/internal/backend"
	"skillsphere/course-studio/internal/curriculum"
	"skillsphere/course-studio/internal/domain"
	"skillsphere/course-studio/internal/lock"
	"skillsphere/course-studio/internal/logger"
	"skillsphere/course-studio/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// multipart framing allowance on top of the file itself
const formOverheadBytes = 1 << 20

type DraftHandler struct {
	draftService   service.DraftService
	maxUploadBytes int64
	log            *logger.Logger
}

func NewDraftHandler(draftService service.DraftService, maxUploadBytes int64, log *logger.Logger) *DraftHandler {
	return &DraftHandler{
		draftService:   draftService,
		maxUploadBytes: maxUploadBytes,
		log:            log.With("handler", "DraftHandler"),
	}
}

// --- Drafts ---

// CreateDraft godoc
// @Summary Start a new course draft
// @Tags Drafts
// @Produce json
// @Security BearerAuth
// @Success 201 {object} DraftResponse
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden (not an instructor or company)"
// @Router /drafts [post]
func (h *DraftHandler) CreateDraft(c *gin.Context) {
	authorID, ok := h.author(c)
	if !ok {
		return
	}
	d, err := h.draftService.CreateDraft(c.Request.Context(), authorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapDraftToResponse(d, nil))
}

// ImportCourse godoc
// @Summary Open an existing course for editing
// @Description Loads the course from SkillSphere and creates an edit-mode draft from it.
// @Tags Drafts
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Course slug"
// @Success 201 {object} DraftResponse
// @Failure 404 {object} gin.H "Course not found"
// @Failure 502 {object} gin.H "Course backend unavailable"
// @Router /drafts/import/{slug} [post]
func (h *DraftHandler) ImportCourse(c *gin.Context) {
	authorID, ok := h.author(c)
	if !ok {
		return
	}
	d, err := h.draftService.ImportCourse(c.Request.Context(), authorID, getTokenFromContext(c), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapDraftToResponse(d, nil))
}

// ListDrafts godoc
// @Summary List the caller's drafts
// @Tags Drafts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} DraftSummaryResponse
// @Router /drafts [get]
func (h *DraftHandler) ListDrafts(c *gin.Context) {
	authorID, ok := h.author(c)
	if !ok {
		return
	}
	drafts, err := h.draftService.ListDrafts(c.Request.Context(), authorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapDraftsToSummaries(drafts))
}

// GetDraft godoc
// @Summary Get a draft with its curriculum tree and pending files
// @Tags Drafts
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Success 200 {object} DraftResponse
// @Failure 404 {object} gin.H "Draft not found"
// @Router /drafts/{draftId} [get]
func (h *DraftHandler) GetDraft(c *gin.Context) {
	ref, ok := h.draftRef(c)
	if !ok {
		return
	}
	details, err := h.draftService.GetDraft(c.Request.Context(), ref)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("ETag", strconv.FormatInt(details.Draft.Revision, 10))
	c.JSON(http.StatusOK, MapDraftToResponse(details.Draft, details.Uploads))
}

// UpdateCourse godoc
// @Summary Update course title, category, price or description
// @Tags Drafts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Param fields body curriculum.CourseFields true "Fields to change"
// @Success 200 {object} DraftResponse
// @Failure 409 {object} gin.H "Draft changed or already deployed"
// @Router /drafts/{draftId} [patch]
func (h *DraftHandler) UpdateCourse(c *gin.Context) {
	ref, ok := h.draftRef(c)
	if !ok {
		return
	}
	var req curriculum.CourseFields
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	_, err := h.draftService.UpdateCourse(c.Request.Context(), ref, req)
	h.respondDraft(c, http.StatusOK, ref, err)
}

// DeleteDraft godoc
// @Summary Discard a draft and its pending files
// @Tags Drafts
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Success 204
// @Router /drafts/{draftId} [delete]
func (h *DraftHandler) DeleteDraft(c *gin.Context) {
	ref, ok := h.draftRef(c)
	if !ok {
		return
	}
	if err := h.draftService.DeleteDraft(c.Request.Context(), ref); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Tree editing ---

// AddModule godoc
// @Summary Append a module
// @Tags Curriculum
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Success 201 {object} DraftResponse
// @Router /drafts/{draftId}/modules [post]
func (h *DraftHandler) AddModule(c *gin.Context) {
	ref, ok := h.draftRef(c)
	if !ok {
		return
	}
	_, err := h.draftService.AddModule(c.Request.Context(), ref)
	h.respondDraft(c, http.StatusCreated, ref, err)
}

// AddWeek godoc
// @Summary Append a week to a module
// @Tags Curriculum
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Param m path int true "Module index"
// @Success 201 {object} DraftResponse
// @Failure 404 {object} gin.H "Module not found"
// @Router /drafts/{draftId}/modules/{m}/weeks [post]
func (h *DraftHandler) AddWeek(c *gin.Context) {
	ref, ok := h.draftRef(c)
	if !ok {
		return
	}
	m, ok := indexParam(c, "m")
	if !ok {
		return
	}
	_, err := h.draftService.AddWeek(c.Request.Context(), ref, m)
	h.respondDraft(c, http.StatusCreated, ref, err)
}

// AddLesson godoc
// @Summary Append a lesson to a week
// @Tags Curriculum
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Param m path int true "Module index"
// @Param w path int true "Week index"
// @Success 201 {object} DraftResponse
// @Failure 404 {object} gin.H "Week not found"
// @Router /drafts/{draftId}/modules/{m}/weeks/{w}/lessons [post]
func (h *DraftHandler) AddLesson(c *gin.Context) {
	ref, ok := h.draftRef(c)
	if !ok {
		return
	}
	m, ok := indexParam(c, "m")
	if !ok {
		return
	}
	w, ok := indexParam(c, "w")
	if !ok {
		return
	}
	_, err := h.draftService.AddLesson(c.Request.Context(), ref, m, w)
	h.respondDraft(c, http.StatusCreated, ref, err)
}

// UpdateNodeField godoc
// @Summary Set one field of a module, week or lesson
// @Tags Curriculum
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Param update body NodeFieldRequest true "Address, field and value"
// @Success 200 {object} DraftResponse
// @Failure 400 {object} gin.H "Unknown field or invalid value"
// @Failure 404 {object} gin.H "Node not found"
// @Router /drafts/{draftId}/nodes [patch]
func (h *DraftHandler) UpdateNodeField(c *gin.Context) {
	ref, ok := h.draftRef(c)
	if !ok {
		return
	}
	var req NodeFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	addr := curriculum.Address{Module: *req.Module, Week: req.Week, Lesson: req.Lesson}
	_, err := h.draftService.UpdateField(c.Request.Context(), ref, addr, req.Field, req.Value)
	h.respondDraft(c, http.StatusOK, ref, err)
}

// RemoveNode godoc
// @Summary Remove a module, week or lesson
// @Description Siblings keep their order values. Pending files of removed lessons are discarded.
// @Tags Curriculum
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Param module query int true "Module index"
// @Param week query int false "Week index"
// @Param lesson query int false "Lesson index"
// @Success 200 {object} DraftResponse
// @Router /drafts/{draftId}/nodes [delete]
func (h *DraftHandler) RemoveNode(c *gin.Context) {
	ref, ok := h.draftRef(c)
	if !ok {
		return
	}
	var q NodeAddressQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	addr := curriculum.Address{Module: *q.Module, Week: q.Week, Lesson: q.Lesson}
	_, err := h.draftService.RemoveNode(c.Request.Context(), ref, addr)
	h.respondDraft(c, http.StatusOK, ref, err)
}

// --- Pending files ---

// AttachFile godoc
// @Summary Select a file for a lesson slot
// @Description Stores the file until deploy. Replaces any file already pending for the slot.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Param file formData file true "The file"
// @Param slot formData string false "video or doc"
// @Param module formData int false "Module index"
// @Param week formData int false "Week index"
// @Param lesson formData int false "Lesson index"
// @Param key formData string false "Positional key such as m0-w0-l0-video"
// @Success 200 {object} DraftResponse
// @Failure 413 {object} gin.H "File too large"
// @Router /drafts/{draftId}/uploads [put]
func (h *DraftHandler) AttachFile(c *gin.Context) {
	ref, ok := h.draftRef(c)
	if !ok {
		return
	}
	h.limitBody(c)
	var q SlotQuery
	if err := c.ShouldBind(&q); err != nil {
		h.abortBindError(c, err)
		return
	}
	h.attach(c, ref, q.toTarget())
}

// AttachThumbnail godoc
// @Summary Select a new course thumbnail
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Param file formData file true "Image"
// @Success 200 {object} DraftResponse
// @Router /drafts/{draftId}/thumbnail [put]
func (h *DraftHandler) AttachThumbnail(c *gin.Context) {
	ref, ok := h.draftRef(c)
	if !ok {
		return
	}
	h.limitBody(c)
	h.attach(c, ref, service.SlotTarget{Slot: domain.SlotThumbnail})
}

// ClearFile godoc
// @Summary Drop the pending file of a slot
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Param slot query string false "video, doc or thumbnail"
// @Param key query string false "Positional key"
// @Success 200 {object} DraftResponse
// @Failure 404 {object} gin.H "No pending file"
// @Router /drafts/{draftId}/uploads [delete]
func (h *DraftHandler) ClearFile(c *gin.Context) {
	ref, ok := h.draftRef(c)
	if !ok {
		return
	}
	var q SlotQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	err := h.draftService.ClearFile(c.Request.Context(), ref, q.toTarget())
	h.respondDraft(c, http.StatusOK, ref, err)
}

// PreviewFile godoc
// @Summary Get a short-lived link to a pending file
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Param slot query string false "video, doc or thumbnail"
// @Param key query string false "Positional key"
// @Success 200 {object} gin.H "{\"url\": \"...\"}"
// @Router /drafts/{draftId}/uploads/preview [get]
func (h *DraftHandler) PreviewFile(c *gin.Context) {
	ref, ok := h.draftRef(c)
	if !ok {
		return
	}
	var q SlotQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	url, err := h.draftService.PreviewURL(c.Request.Context(), ref, q.toTarget())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// --- Deploy ---

// Deploy godoc
// @Summary Deploy the draft to SkillSphere
// @Description Sends the whole course with every pending file in one request: create for a new draft, replace for an imported one.
// @Tags Drafts
// @Produce json
// @Security BearerAuth
// @Param draftId path string true "Draft ID"
// @Success 200 {object} DeployResponse
// @Failure 400 {object} gin.H "Draft incomplete, or rejected by SkillSphere"
// @Failure 409 {object} gin.H "A deploy is already in progress"
// @Failure 502 {object} gin.H "SkillSphere unavailable"
// @Router /drafts/{draftId}/deploy [post]
func (h *DraftHandler) Deploy(c *gin.Context) {
	ref, ok := h.draftRef(c)
	if !ok {
		return
	}
	res, err := h.draftService.Deploy(c.Request.Context(), ref, getTokenFromContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeployResponse{
		Message:  "Course deployed successfully",
		CourseID: res.Course.ID,
		Slug:     res.Draft.CourseSlug,
		Draft:    MapDraftToResponse(res.Draft, nil),
	})
}

// --- helpers ---

func (h *DraftHandler) author(c *gin.Context) (string, bool) {
	authorID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return "", false
	}
	return authorID, true
}

// draftRef reads the draft ID from the path and the expected revision from If-Match.
func (h *DraftHandler) draftRef(c *gin.Context) (service.DraftRef, bool) {
	authorID, ok := h.author(c)
	if !ok {
		return service.DraftRef{}, false
	}
	draftID, err := primitive.ObjectIDFromHex(c.Param("draftId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid draft ID format.")
		return service.DraftRef{}, false
	}
	ref := service.DraftRef{AuthorID: authorID, DraftID: draftID}
	if raw := strings.Trim(c.GetHeader("If-Match"), `" `); raw != "" {
		rev, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || rev <= 0 {
			abortWithError(c, http.StatusBadRequest, "If-Match must carry the draft revision.")
			return service.DraftRef{}, false
		}
		ref.Revision = rev
	}
	return ref, true
}

func indexParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n < 0 {
		abortWithError(c, http.StatusBadRequest, "Invalid "+name+" index.")
		return 0, false
	}
	return n, true
}

func (h *DraftHandler) limitBody(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+formOverheadBytes)
	}
}

func (h *DraftHandler) abortBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		abortWithError(c, http.StatusRequestEntityTooLarge, service.ErrFileTooLarge.Error())
		return
	}
	abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
}

func (h *DraftHandler) attach(c *gin.Context, ref service.DraftRef, target service.SlotTarget) {
	header, err := c.FormFile("file")
	if err != nil {
		h.abortBindError(c, err)
		return
	}
	f, err := header.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Could not read uploaded file.")
		return
	}
	defer f.Close()

	_, err = h.draftService.AttachFile(c.Request.Context(), ref, target, service.IncomingFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        f,
	})
	h.respondDraft(c, http.StatusOK, ref, err)
}

// respondDraft answers with the draft as it is now, pending files included.
func (h *DraftHandler) respondDraft(c *gin.Context, status int, ref service.DraftRef, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	ref.Revision = 0
	details, err := h.draftService.GetDraft(c.Request.Context(), ref)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("ETag", strconv.FormatInt(details.Draft.Revision, 10))
	c.JSON(status, MapDraftToResponse(details.Draft, details.Uploads))
}

// respondError maps service, curriculum and backend errors to HTTP responses.
func (h *DraftHandler) respondError(c *gin.Context, err error) {
	var verr *curriculum.ValidationError
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
	case errors.Is(err, service.ErrDraftNotFound), errors.Is(err, service.ErrUploadNotFound),
		errors.Is(err, curriculum.ErrNodeNotFound), errors.Is(err, backend.ErrCourseNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDraftAccessDenied):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrDraftSubmitted), errors.Is(err, service.ErrDraftConflict),
		errors.Is(err, lock.ErrSubmissionInFlight):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		abortWithError(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrEmptyFile), errors.Is(err, service.ErrSlotNotOffered),
		errors.Is(err, curriculum.ErrInvalidAddress), errors.Is(err, curriculum.ErrUnknownField),
		errors.Is(err, curriculum.ErrInvalidValue), errors.Is(err, curriculum.ErrMalformedKey):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr):
		// 4xx from SkillSphere is the author's problem and is passed through as is
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		abortWithError(c, status, apiErr.Message)
	case errors.Is(err, service.ErrDeployNotRecorded):
		h.log.Error("deploy not recorded", "path", c.FullPath(), "error", err)
		abortWithError(c, http.StatusInternalServerError, service.ErrDeployNotRecorded.Error())
	case errors.Is(err, backend.ErrUnavailable):
		h.log.Error("course backend unavailable", "error", err)
		abortWithError(c, http.StatusBadGateway, backend.FallbackMessage)
	default:
		h.log.Error("unexpected error", "path", c.FullPath(), "error", err)
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred.")
	}
}
