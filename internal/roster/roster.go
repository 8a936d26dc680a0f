// Package roster manages class rosters: name parsing, batch import and
// the student add/rename/delete operations.
package roster

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/edunotas/edunotas-api/internal/models"
	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
)

var lineSplit = regexp.MustCompile(`\r?\n`)

// IDFunc generates student identifiers.
type IDFunc func() string

// NewID is the default identifier source.
var NewID IDFunc = uuid.NewString

// ImportResult reports how many names were added and how many were skipped
// as case-insensitive duplicates.
type ImportResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// ParseNames turns newline separated text into names. Only the part of a
// line before the first ';' or ',' is kept, so CSV exports work as-is.
func ParseNames(text string) []string {
	lines := lineSplit.Split(text, -1)
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i := strings.IndexAny(line, ";,"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	return names
}

// Import appends new students to the class. Names that are blank are
// ignored; names already on the roster or earlier in the same batch are
// skipped and counted.
func Import(class *models.Class, names []string, newID IDFunc) ImportResult {
	if newID == nil {
		newID = NewID
	}
	seen := make(map[string]struct{}, len(class.Students)+len(names))
	for _, s := range class.Students {
		seen[models.NameKey(s.Name)] = struct{}{}
	}

	var res ImportResult
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := models.NameKey(name)
		if _, dup := seen[key]; dup {
			res.Skipped++
			continue
		}
		seen[key] = struct{}{}
		class.Students = append(class.Students, newStudent(newID(), name))
		res.Added++
	}
	return res
}

func newStudent(id, name string) *models.Student {
	return &models.Student{ID: id, Name: name, Events: []models.MarkEvent{}}
}

// AddStudent appends a single student.
func AddStudent(class *models.Class, name string, newID IDFunc) (*models.Student, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.ErrEmptyName
	}
	if class.HasName(name, "") {
		return nil, appErrors.ErrDuplicateName
	}
	if newID == nil {
		newID = NewID
	}
	s := newStudent(newID(), name)
	class.Students = append(class.Students, s)
	return s, nil
}

// RenameStudent changes a student's display name keeping its marks.
func RenameStudent(class *models.Class, id, name string) (*models.Student, error) {
	s := class.FindStudent(id)
	if s == nil {
		return nil, appErrors.ErrStudentNotFound
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.ErrEmptyName
	}
	if class.HasName(name, id) {
		return nil, appErrors.ErrDuplicateName
	}
	s.Name = name
	return s, nil
}

// DeleteStudent removes a student from the roster.
func DeleteStudent(class *models.Class, id string) error {
	for i, s := range class.Students {
		if s.ID == id {
			class.Students = append(class.Students[:i], class.Students[i+1:]...)
			return nil
		}
	}
	return appErrors.ErrStudentNotFound
}

// ResetMarks zeroes every counter of the class. Mark history is kept.
func ResetMarks(class *models.Class) {
	for _, s := range class.Students {
		s.Count = 0
		s.PositiveCount = 0
		s.SpentMs = 0
	}
}

// Filter returns the students meeting both minimums, in roster order.
func Filter(class *models.Class, minNeg, minPos int) []*models.Student {
	out := make([]*models.Student, 0, len(class.Students))
	for _, s := range class.Students {
		if s.Count >= minNeg && s.PositiveCount >= minPos {
			out = append(out, s)
		}
	}
	return out
}
