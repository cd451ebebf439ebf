package curriculum

import (
	"errors"
	"fmt"
	"testing"

	"skillsphere/course-studio/internal/domain"
)

func buildDraft(t *testing.T, shape ...[]int) *domain.Draft {
	t.Helper()
	d := NewDraft("author-1")
	var err error
	for mi, weeks := range shape {
		d = AddModule(d)
		for wi, lessons := range weeks {
			if d, err = AddWeek(d, mi); err != nil {
				t.Fatalf("AddWeek(%d): %v", mi, err)
			}
			for li := 0; li < lessons; li++ {
				if d, err = AddLesson(d, mi, wi); err != nil {
					t.Fatalf("AddLesson(%d,%d): %v", mi, wi, err)
				}
			}
		}
	}
	return d
}

func TestDefaultNamingAndOrder(t *testing.T) {
	d := buildDraft(t, []int{2, 0}, []int{1})

	for i, m := range d.Modules {
		if want := fmt.Sprintf("Module %d", i+1); m.Title != want || m.Order != i+1 {
			t.Fatalf("module %d: got title=%q order=%d", i, m.Title, m.Order)
		}
	}
	weeks := d.Modules[0].Weeks
	if len(weeks) != 2 || weeks[1].Title != "Week 2" || weeks[1].Order != 2 {
		t.Fatalf("unexpected weeks: %+v", weeks)
	}
	lessons := weeks[0].Lessons
	if len(lessons) != 2 {
		t.Fatalf("expected 2 lessons, got %d", len(lessons))
	}
	for i, l := range lessons {
		if l.Title != DefaultLessonTitle || l.Order != i+1 || l.ContentType != domain.ContentVideo {
			t.Fatalf("lesson %d: %+v", i, l)
		}
		if l.ID == "" {
			t.Fatalf("lesson %d has no stable id", i)
		}
	}
}

func TestMutationsDoNotTouchInput(t *testing.T) {
	d := buildDraft(t, []int{1})
	before := d.Modules[0].Weeks[0].Lessons[0].Title

	next, err := UpdateField(d, LessonAt(0, 0, 0), "title", "Changed")
	if err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	if d.Modules[0].Weeks[0].Lessons[0].Title != before {
		t.Fatalf("input draft was mutated")
	}
	if next.Modules[0].Weeks[0].Lessons[0].Title != "Changed" {
		t.Fatalf("update not applied")
	}

	grown := AddModule(d)
	if len(d.Modules) != 1 || len(grown.Modules) != 2 {
		t.Fatalf("AddModule mutated input: before=%d after=%d", len(d.Modules), len(grown.Modules))
	}
}

func TestUpdateFieldAddressing(t *testing.T) {
	d := buildDraft(t, []int{3})

	out, err := UpdateField(d, LessonAt(0, 0, 1), "title", "X")
	if err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	lessons := out.Modules[0].Weeks[0].Lessons
	if lessons[1].Title != "X" {
		t.Fatalf("target lesson not updated: %q", lessons[1].Title)
	}
	if lessons[0].Title != DefaultLessonTitle || lessons[2].Title != DefaultLessonTitle {
		t.Fatalf("sibling lessons changed: %q %q", lessons[0].Title, lessons[2].Title)
	}
	if out.Modules[0].Weeks[0].Title != "Week 1" || out.Modules[0].Title != "Module 1" {
		t.Fatalf("ancestors changed: week=%q module=%q", out.Modules[0].Weeks[0].Title, out.Modules[0].Title)
	}

	out, err = UpdateField(out, WeekAt(0, 0), "title", "Basics")
	if err != nil {
		t.Fatalf("UpdateField week: %v", err)
	}
	out, err = UpdateField(out, ModuleAt(0), "title", "Getting Started")
	if err != nil {
		t.Fatalf("UpdateField module: %v", err)
	}
	if out.Modules[0].Weeks[0].Title != "Basics" || out.Modules[0].Title != "Getting Started" {
		t.Fatalf("week/module titles not updated")
	}
	if out.Modules[0].Weeks[0].Lessons[1].Title != "X" {
		t.Fatalf("lesson title lost")
	}
}

func TestUpdateFieldLessonContent(t *testing.T) {
	d := buildDraft(t, []int{1})
	addr := LessonAt(0, 0, 0)

	steps := []struct {
		field string
		value any
	}{
		{"content_type", "Quiz"},
		{"question_count", float64(10)},
		{"passing_score", "70"},
		{"video_url", "https://videos.example.com/intro"},
	}
	var err error
	for _, s := range steps {
		if d, err = UpdateField(d, addr, s.field, s.value); err != nil {
			t.Fatalf("UpdateField(%s): %v", s.field, err)
		}
	}
	l := d.Modules[0].Weeks[0].Lessons[0]
	if l.ContentType != domain.ContentQuiz || l.QuestionCount != 10 || l.PassingScore != 70 {
		t.Fatalf("unexpected lesson: %+v", l)
	}
	if l.VideoURL != "https://videos.example.com/intro" {
		t.Fatalf("video url not kept: %q", l.VideoURL)
	}
}

func TestUpdateFieldErrors(t *testing.T) {
	d := buildDraft(t, []int{1})

	cases := []struct {
		name  string
		addr  Address
		field string
		value any
		want  error
	}{
		{"unknown lesson field", LessonAt(0, 0, 0), "colour", "red", ErrUnknownField},
		{"unknown module field", ModuleAt(0), "content", "x", ErrUnknownField},
		{"bad content type", LessonAt(0, 0, 0), "content_type", "Podcast", ErrInvalidValue},
		{"score over 100", LessonAt(0, 0, 0), "passing_score", 101, ErrInvalidValue},
		{"fractional count", LessonAt(0, 0, 0), "question_count", 2.5, ErrInvalidValue},
		{"title not string", WeekAt(0, 0), "title", 3, ErrInvalidValue},
		{"missing module", ModuleAt(4), "title", "x", ErrNodeNotFound},
		{"missing lesson", LessonAt(0, 0, 9), "title", "x", ErrNodeNotFound},
		{"lesson without week", Address{Module: 0, Lesson: intp(0)}, "title", "x", ErrInvalidAddress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := UpdateField(d, tc.addr, tc.field, tc.value); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRemoveNodeKeepsOrderGaps(t *testing.T) {
	d := buildDraft(t, []int{3}, []int{1}, []int{0})
	doomed := d.Modules[0].Weeks[0].Lessons[1].ID

	out, removed, err := RemoveNode(d, LessonAt(0, 0, 1))
	if err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	if len(removed) != 1 || removed[0] != doomed {
		t.Fatalf("removed = %v, want [%s]", removed, doomed)
	}
	lessons := out.Modules[0].Weeks[0].Lessons
	if len(lessons) != 2 || lessons[0].Order != 1 || lessons[1].Order != 3 {
		t.Fatalf("expected orders [1 3], got %+v", lessons)
	}

	out, _, err = RemoveNode(out, ModuleAt(1))
	if err != nil {
		t.Fatalf("RemoveNode module: %v", err)
	}
	if len(out.Modules) != 2 || out.Modules[1].Order != 3 {
		t.Fatalf("expected remaining module orders [1 3], got %+v", out.Modules)
	}
	if len(d.Modules) != 3 {
		t.Fatalf("input draft was mutated")
	}
}

func TestRemoveWeekReportsLessons(t *testing.T) {
	d := buildDraft(t, []int{2, 1})
	want := map[string]bool{
		d.Modules[0].Weeks[0].Lessons[0].ID: true,
		d.Modules[0].Weeks[0].Lessons[1].ID: true,
	}
	_, removed, err := RemoveNode(d, WeekAt(0, 0))
	if err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	if len(removed) != 2 || !want[removed[0]] || !want[removed[1]] {
		t.Fatalf("removed = %v", removed)
	}
}

// Every lesson must resolve to exactly one week and module, whatever the edit sequence.
func TestTreeShapeInvariant(t *testing.T) {
	d := NewDraft("author-1")
	var err error
	ops := []func(){
		func() { d = AddModule(d) },
		func() { d = AddModule(d) },
		func() { d, err = AddWeek(d, 0) },
		func() { d, err = AddWeek(d, 1) },
		func() { d, err = AddWeek(d, 1) },
		func() { d, err = AddLesson(d, 0, 0) },
		func() { d, err = AddLesson(d, 1, 1) },
		func() { d, err = AddLesson(d, 1, 1) },
		func() { d, _, err = RemoveNode(d, WeekAt(1, 0)) },
		func() { d, err = AddLesson(d, 1, 0) },
		func() { d, _, err = RemoveNode(d, LessonAt(0, 0, 0)) },
		func() { d = AddModule(d) },
		func() { d, err = AddWeek(d, 2) },
		func() { d, err = AddLesson(d, 2, 0) },
		func() { d, _, err = RemoveNode(d, ModuleAt(0)) },
	}
	for i, op := range ops {
		op()
		if err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
		seen := map[string]string{}
		for mi, m := range d.Modules {
			for wi, w := range m.Weeks {
				for li, l := range w.Lessons {
					path := fmt.Sprintf("%d/%d/%d", mi, wi, li)
					if prev, dup := seen[l.ID]; dup {
						t.Fatalf("op %d: lesson %s at %s and %s", i, l.ID, prev, path)
					}
					seen[l.ID] = path
				}
			}
		}
	}
	if len(d.Modules) != 2 || len(LessonIDs(d)) != 4 {
		t.Fatalf("unexpected final shape: modules=%d lessons=%d", len(d.Modules), len(LessonIDs(d)))
	}
}

func TestSetCourseFields(t *testing.T) {
	d := NewDraft("author-1")
	title, price := "Intro to X", 19.5
	out, err := SetCourseFields(d, CourseFields{Title: &title, Price: &price})
	if err != nil {
		t.Fatalf("SetCourseFields: %v", err)
	}
	if out.Title != title || out.Price != price || d.Title != "" {
		t.Fatalf("unexpected result: %+v (input title %q)", out, d.Title)
	}
	neg := -1.0
	if _, err := SetCourseFields(d, CourseFields{Price: &neg}); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func intp(n int) *int { return &n }
