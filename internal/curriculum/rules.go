package curriculum

import "skillsphere/course-studio/internal/domain"

// renderLesson emits the common lesson fields plus the ones its content type uses.
// Fields belonging to other content types stay on the draft (switching back keeps
// them) but are not sent.
func renderLesson(l domain.Lesson) LessonPayload {
	p := LessonPayload{
		ID:          l.BackendID,
		Title:       l.Title,
		Order:       l.Order,
		ContentType: l.ContentType,
	}
	switch l.ContentType {
	case domain.ContentVideo:
		p.VideoURL = strPtr(l.VideoURL)
	case domain.ContentText:
		p.Content = strPtr(l.Content)
		p.ResourceLink = strPtr(l.ResourceLink)
	case domain.ContentQuiz:
		p.QuestionCount = intPtr(l.QuestionCount)
		p.PassingScore = intPtr(l.PassingScore)
	}
	return p
}

// SlotsFor lists the upload slots an editor offers for a content type.
func SlotsFor(ct domain.ContentType) []domain.Slot {
	switch ct {
	case domain.ContentVideo:
		return []domain.Slot{domain.SlotVideo}
	case domain.ContentText:
		return []domain.Slot{domain.SlotDoc}
	}
	return nil
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }
