package curriculum

import "fmt"

// Level is the depth an Address resolves to.
type Level int

const (
	LevelModule Level = iota
	LevelWeek
	LevelLesson
)

func (l Level) String() string {
	switch l {
	case LevelModule:
		return "module"
	case LevelWeek:
		return "week"
	case LevelLesson:
		return "lesson"
	}
	return "unknown"
}

// Address points at a node by position. The most specific non-nil index wins:
// Lesson set means a lesson, else Week set means a week, else the module.
type Address struct {
	Module int  `json:"module"`
	Week   *int `json:"week"`
	Lesson *int `json:"lesson"`
}

func ModuleAt(m int) Address { return Address{Module: m} }

func WeekAt(m, w int) Address { return Address{Module: m, Week: &w} }

func LessonAt(m, w, l int) Address { return Address{Module: m, Week: &w, Lesson: &l} }

// Level reports which tree level the address targets.
func (a Address) Level() Level {
	switch {
	case a.Lesson != nil:
		return LevelLesson
	case a.Week != nil:
		return LevelWeek
	default:
		return LevelModule
	}
}

func (a Address) String() string {
	switch a.Level() {
	case LevelLesson:
		if a.Week == nil {
			return fmt.Sprintf("m%d-w?-l%d", a.Module, *a.Lesson)
		}
		return fmt.Sprintf("m%d-w%d-l%d", a.Module, *a.Week, *a.Lesson)
	case LevelWeek:
		return fmt.Sprintf("m%d-w%d", a.Module, *a.Week)
	default:
		return fmt.Sprintf("m%d", a.Module)
	}
}
