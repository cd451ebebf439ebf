package curriculum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"skillsphere/course-studio/internal/domain"
)

// --- Outbound: the "modules" part of a create/update submission ---

type ModulePayload struct {
	ID    *int64        `json:"id,omitempty"`
	Title string        `json:"title"`
	Order int           `json:"order"`
	Weeks []WeekPayload `json:"weeks"`
}

type WeekPayload struct {
	ID      *int64          `json:"id,omitempty"`
	Title   string          `json:"title"`
	Order   int             `json:"order"`
	Lessons []LessonPayload `json:"lessons"`
}

// LessonPayload is one lesson record. TempVideoKey and TempDocKey always appear,
// as null when no file is pending, and otherwise name the multipart part that
// carries the binary.
type LessonPayload struct {
	ID          *int64             `json:"id,omitempty"`
	Title       string             `json:"title"`
	Order       int                `json:"order"`
	ContentType domain.ContentType `json:"content_type"`

	VideoURL      *string `json:"video_url,omitempty"`
	Content       *string `json:"content,omitempty"`
	ResourceLink  *string `json:"resource_link,omitempty"`
	QuestionCount *int    `json:"question_count,omitempty"`
	PassingScore  *int    `json:"passing_score,omitempty"`

	TempVideoKey *string `json:"temp_video_key"`
	TempDocKey   *string `json:"temp_doc_key"`
}

// --- Inbound: course record returned by courses/{slug}/ and the create/update calls ---

type CourseRecord struct {
	ID          int64          `json:"id"`
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	Category    FlexString     `json:"category"`
	Price       FlexString     `json:"price"`
	Description string         `json:"description"`
	Thumbnail   string         `json:"thumbnail"`
	Modules     []ModuleRecord `json:"modules"`
}

type ModuleRecord struct {
	ID    int64        `json:"id"`
	Title string       `json:"title"`
	Order int          `json:"order"`
	Weeks []WeekRecord `json:"weeks"`
}

type WeekRecord struct {
	ID      int64          `json:"id"`
	Title   string         `json:"title"`
	Order   int            `json:"order"`
	Lessons []LessonRecord `json:"lessons"`
}

type LessonRecord struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Order         int    `json:"order"`
	ContentType   string `json:"content_type"`
	VideoURL      string `json:"video_url"`
	VideoFile     string `json:"video_file"`
	Content       string `json:"content"`
	ResourceLink  string `json:"resource_link"`
	DocFile       string `json:"doc_file"`
	QuestionCount int    `json:"question_count"`
	PassingScore  int    `json:"passing_score"`
}

// FlexString decodes a JSON string or number into its textual form. The backend
// serialises decimals (price) as strings and foreign keys (category) as numbers.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = FlexString(n.String())
	return nil
}

// Float parses the value, treating empty as zero.
func (f FlexString) Float() (float64, error) {
	if f == "" {
		return 0, nil
	}
	return strconv.ParseFloat(string(f), 64)
}
