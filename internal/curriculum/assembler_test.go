package curriculum

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"skillsphere/course-studio/internal/domain"
)

func readyDraft(t *testing.T, shape ...[]int) *domain.Draft {
	t.Helper()
	d := buildDraft(t, shape...)
	d.Title = "Intro to X"
	d.Description = "Everything about X"
	return d
}

func TestValidateRequiresTitleAndDescription(t *testing.T) {
	d := NewDraft("author-1")
	d.Title = "   "

	err := Validate(d)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Fields["title"] == "" || verr.Fields["description"] == "" {
		t.Fatalf("missing field messages: %+v", verr.Fields)
	}
	if _, err := Assemble(d, NewRegistry()); !errors.As(err, &verr) {
		t.Fatalf("Assemble should refuse an invalid draft, got %v", err)
	}
}

func TestAssembleCorrelatesPendingFiles(t *testing.T) {
	d := readyDraft(t, []int{1, 0, 0}, []int{0, 0, 2})
	reg := NewRegistry()
	ref, err := SlotRefAt(d, 1, 2, 0, domain.SlotVideo)
	if err != nil {
		t.Fatalf("SlotRefAt: %v", err)
	}
	reg.Set(ref, File{Name: "lecture.mp4"})

	sub, err := Assemble(d, reg)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if sub.Method != http.MethodPost || sub.Slug != "" {
		t.Fatalf("new draft should POST, got %s %q", sub.Method, sub.Slug)
	}

	withFile := sub.Modules[1].Weeks[2].Lessons[0]
	if withFile.TempVideoKey == nil || *withFile.TempVideoKey != "m1-w2-l0-video" {
		t.Fatalf("temp_video_key = %v", withFile.TempVideoKey)
	}
	if withFile.TempDocKey != nil {
		t.Fatalf("temp_doc_key should be null")
	}
	without := sub.Modules[1].Weeks[2].Lessons[1]
	if without.TempVideoKey != nil {
		t.Fatalf("lesson without a file got key %q", *without.TempVideoKey)
	}
	if len(sub.Files) != 1 || sub.Files[0].Name != "m1-w2-l0-video" || sub.Files[0].File.Name != "lecture.mp4" {
		t.Fatalf("unexpected file parts: %+v", sub.Files)
	}
}

func TestAssembleRecomputesKeysFromCurrentPositions(t *testing.T) {
	d := readyDraft(t, []int{3})
	reg := NewRegistry()
	ref, _ := SlotRefAt(d, 0, 0, 2, domain.SlotDoc)
	reg.Set(ref, File{Name: "notes.pdf"})

	d, _, err := RemoveNode(d, LessonAt(0, 0, 0))
	if err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	sub, err := Assemble(d, reg)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(sub.Files) != 1 || sub.Files[0].Name != "m0-w0-l1-doc" {
		t.Fatalf("expected part m0-w0-l1-doc, got %+v", sub.Files)
	}
	if k := sub.Modules[0].Weeks[0].Lessons[1].TempDocKey; k == nil || *k != "m0-w0-l1-doc" {
		t.Fatalf("temp_doc_key = %v", k)
	}
}

func TestAssembleSkipsOrphansAndSendsThumbnail(t *testing.T) {
	d := readyDraft(t, []int{1})
	reg := NewRegistry()
	reg.Set(SlotRef{LessonID: "deleted-lesson", Slot: domain.SlotVideo}, File{Name: "old.mp4"})
	reg.Set(ThumbnailRef(), File{Name: "cover.png"})

	sub, err := Assemble(d, reg)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(sub.Files) != 1 || sub.Files[0].Name != ThumbnailPart {
		t.Fatalf("unexpected parts: %+v", sub.Files)
	}
}

func TestAssembleWireShape(t *testing.T) {
	d := readyDraft(t, []int{3})
	d.Price = 49
	var err error
	d, err = UpdateField(d, LessonAt(0, 0, 1), "content_type", "Text")
	if err != nil {
		t.Fatal(err)
	}
	d, _ = UpdateField(d, LessonAt(0, 0, 1), "content", "<p>Hello</p>")
	d, _ = UpdateField(d, LessonAt(0, 0, 2), "content_type", "Quiz")
	d, _ = UpdateField(d, LessonAt(0, 0, 2), "passing_score", 80)

	sub, err := Assemble(d, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	form, err := sub.FormData()
	if err != nil {
		t.Fatalf("FormData: %v", err)
	}
	if form["title"] != "Intro to X" || form["price"] != "49.00" || form["description"] != "Everything about X" {
		t.Fatalf("unexpected scalar fields: %v", form)
	}

	var modules []map[string]any
	if err := json.Unmarshal([]byte(form[ModulesPart]), &modules); err != nil {
		t.Fatalf("modules part is not JSON: %v", err)
	}
	lessons := modules[0]["weeks"].([]any)[0].(map[string]any)["lessons"].([]any)

	video := lessons[0].(map[string]any)
	if video["content_type"] != "Video" {
		t.Fatalf("content_type = %v", video["content_type"])
	}
	for _, k := range []string{"temp_video_key", "temp_doc_key"} {
		v, present := video[k]
		if !present || v != nil {
			t.Fatalf("%s must be present and null, got %v (present=%v)", k, v, present)
		}
	}
	if _, ok := video["video_url"]; !ok {
		t.Fatalf("video lesson should carry video_url")
	}
	if _, ok := video["id"]; ok {
		t.Fatalf("new lesson must not carry an id")
	}

	text := lessons[1].(map[string]any)
	if text["content"] != "<p>Hello</p>" {
		t.Fatalf("text content = %v", text["content"])
	}
	if _, ok := text["video_url"]; ok {
		t.Fatalf("text lesson should not carry video_url")
	}

	quiz := lessons[2].(map[string]any)
	if quiz["passing_score"] != float64(80) {
		t.Fatalf("passing_score = %v", quiz["passing_score"])
	}
	if !strings.Contains(form[ModulesPart], `"question_count":0`) {
		t.Fatalf("quiz lesson should carry question_count: %s", form[ModulesPart])
	}
}
