package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"skillsphere/course-studio/internal/config"
	"skillsphere/course-studio/internal/curriculum"
	"skillsphere/course-studio/internal/logger"

	"github.com/go-resty/resty/v2"
)

var (
	ErrUnavailable    = errors.New("course backend unavailable")
	ErrCourseNotFound = errors.New("course not found")
)

// FallbackMessage is shown when a failed response carries no usable message.
const FallbackMessage = "Failed to deploy course. Please try again."

const createCoursePath = "courses/create-full-course/"

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Message)
}

// Is lets callers test a 404 with errors.Is(err, ErrCourseNotFound).
func (e *APIError) Is(target error) bool {
	return target == ErrCourseNotFound && e.Status == http.StatusNotFound
}

// Client talks to the SkillSphere course endpoints. The caller's bearer token is
// forwarded on every request; retries are disabled so a failed submission is
// reported, never replayed.
type Client struct {
	http      *resty.Client
	mediaBase string
	log       *logger.Logger
}

func NewClient(cfg config.BackendConfig, log *logger.Logger) *Client {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	mediaBase := cfg.MediaURL
	if mediaBase == "" {
		mediaBase = origin(cfg.BaseURL)
	}
	return &Client{
		http:      rc,
		mediaBase: mediaBase,
		log:       log.With("component", "BackendClient"),
	}
}

// FetchCourse loads a course with its nested modules, weeks and lessons.
func (c *Client) FetchCourse(ctx context.Context, token, slug string) (*curriculum.CourseRecord, error) {
	var rec curriculum.CourseRecord
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&rec).
		Get(coursePath(slug))
	if err != nil {
		c.log.Error("fetch course failed", "slug", slug, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return nil, apiError(resp, "Failed to load course.")
	}
	return &rec, nil
}

// Submit sends one assembled submission as a single multipart request: POST to
// create, PUT to replace. Pending files are opened here and closed before return.
func (c *Client) Submit(ctx context.Context, token string, sub *curriculum.Submission) (*curriculum.CourseRecord, error) {
	form, err := sub.FormData()
	if err != nil {
		return nil, fmt.Errorf("encode modules: %w", err)
	}

	parts := make([]*resty.MultipartField, 0, len(sub.Files))
	var opened []io.Closer
	defer func() {
		for _, rc := range opened {
			_ = rc.Close()
		}
	}()
	for _, fp := range sub.Files {
		rc, err := fp.File.Open(ctx)
		if err != nil {
			return nil, fmt.Errorf("open pending file %s: %w", fp.Name, err)
		}
		opened = append(opened, rc)
		contentType := fp.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		parts = append(parts, &resty.MultipartField{
			Param:       fp.Name,
			FileName:    fp.File.Name,
			ContentType: contentType,
			Reader:      rc,
		})
	}

	path := createCoursePath
	if sub.Method == http.MethodPut {
		path = coursePath(sub.Slug)
	}

	var rec curriculum.CourseRecord
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetMultipartFormData(form).
		SetResult(&rec)
	if len(parts) > 0 {
		req.SetMultipartFields(parts...)
	}
	resp, err := req.Execute(sub.Method, path)
	if err != nil {
		c.log.Error("course submission failed", "method", sub.Method, "path", path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		apiErr := apiError(resp, FallbackMessage)
		c.log.Warn("course submission rejected", "status", apiErr.Status, "message", apiErr.Message)
		return nil, apiErr
	}
	c.log.Info("course submitted", "method", sub.Method, "slug", rec.Slug, "files", len(parts))
	return &rec, nil
}

// MediaURL resolves a media path against the configured media base.
func (c *Client) MediaURL(p string) string {
	return MediaURL(c.mediaBase, p)
}

// MediaURL leaves absolute URLs alone and joins relative paths onto base.
func MediaURL(base, p string) string {
	if p == "" {
		return ""
	}
	if u, err := url.Parse(p); err == nil && u.IsAbs() {
		return p
	}
	if base == "" {
		return p
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}

func coursePath(slug string) string {
	return "courses/" + url.PathEscape(slug) + "/"
}

func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func apiError(resp *resty.Response, fallback string) *APIError {
	msg := extractMessage(resp.Body())
	if msg == "" {
		msg = fallback
	}
	return &APIError{Status: resp.StatusCode(), Message: msg}
}

// extractMessage pulls a human readable message out of an error body. It knows
// the {"detail": ...} / {"message": ...} / {"error": ...} shapes and field error
// maps such as {"slug": ["course with this slug already exists."]}.
func extractMessage(body []byte) string {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch v := payload.(type) {
	case string:
		return v
	case []any:
		return firstString(v)
	case map[string]any:
		for _, k := range []string{"detail", "message", "error"} {
			if s, ok := v[k].(string); ok && s != "" {
				return s
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch fv := v[k].(type) {
			case string:
				if fv != "" {
					return k + ": " + fv
				}
			case []any:
				if s := firstString(fv); s != "" {
					return k + ": " + s
				}
			}
		}
	}
	return ""
}

func firstString(items []any) string {
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
