package roster

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/edunotas/edunotas-api/internal/models"
	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
)

func seqIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}
}

func TestParseNames(t *testing.T) {
	text := "Ana López; 3ºA\r\n\n  Luis Pérez , extra\n;\n   \nMarta"
	assert.Equal(t, []string{"Ana López", "Luis Pérez", "Marta"}, ParseNames(text))
	assert.Empty(t, ParseNames(""))
}

func TestImportCountsCaseInsensitiveDuplicates(t *testing.T) {
	class := &models.Class{Name: "Clase 1"}
	res := Import(class, []string{"Ana", "ana", "Luis"}, seqIDs())

	assert.Equal(t, ImportResult{Added: 2, Skipped: 1}, res)
	require.Len(t, class.Students, 2)
	assert.Equal(t, "Ana", class.Students[0].Name)
	assert.Equal(t, "Luis", class.Students[1].Name)
	assert.Equal(t, "s1", class.Students[0].ID)
	assert.NotNil(t, class.Students[0].Events)
}

func TestImportSkipsExistingRoster(t *testing.T) {
	class := &models.Class{Students: []*models.Student{{ID: "x", Name: "Ana"}}}
	res := Import(class, []string{" ANA ", "", "Luis"}, seqIDs())
	assert.Equal(t, ImportResult{Added: 1, Skipped: 1}, res)
	assert.Len(t, class.Students, 2)
}

func TestAddStudent(t *testing.T) {
	class := &models.Class{}
	s, err := AddStudent(class, "  Ana ", seqIDs())
	require.NoError(t, err)
	assert.Equal(t, "Ana", s.Name)

	_, err = AddStudent(class, "ANA", seqIDs())
	assert.ErrorIs(t, err, appErrors.ErrDuplicateName)

	_, err = AddStudent(class, "   ", seqIDs())
	assert.ErrorIs(t, err, appErrors.ErrEmptyName)
	assert.Len(t, class.Students, 1)
}

func TestRenameStudent(t *testing.T) {
	class := &models.Class{}
	Import(class, []string{"Ana", "Luis"}, seqIDs())

	_, err := RenameStudent(class, "s1", "luis")
	assert.ErrorIs(t, err, appErrors.ErrDuplicateName)

	_, err = RenameStudent(class, "s1", "")
	assert.ErrorIs(t, err, appErrors.ErrEmptyName)

	_, err = RenameStudent(class, "missing", "Eva")
	assert.ErrorIs(t, err, appErrors.ErrStudentNotFound)

	s, err := RenameStudent(class, "s1", "ANA")
	require.NoError(t, err, "changing case of own name is allowed")
	assert.Equal(t, "ANA", s.Name)
}

func TestDeleteStudent(t *testing.T) {
	class := &models.Class{}
	Import(class, []string{"Ana", "Luis", "Eva"}, seqIDs())

	require.NoError(t, DeleteStudent(class, "s2"))
	require.Len(t, class.Students, 2)
	assert.Equal(t, "Eva", class.Students[1].Name)
	assert.ErrorIs(t, DeleteStudent(class, "s2"), appErrors.ErrStudentNotFound)
}

func TestResetMarksKeepsHistory(t *testing.T) {
	class := &models.Class{Students: []*models.Student{{
		ID: "a", Name: "Ana", Count: 3, PositiveCount: 1, SpentMs: 500,
		Events: []models.MarkEvent{{At: 1, Kind: models.MarkNegative}},
	}}}
	ResetMarks(class)
	s := class.Students[0]
	assert.Zero(t, s.Count)
	assert.Zero(t, s.PositiveCount)
	assert.Zero(t, s.SpentMs)
	assert.Len(t, s.Events, 1)
}

func TestFilter(t *testing.T) {
	class := &models.Class{Students: []*models.Student{
		{ID: "a", Count: 0, PositiveCount: 2},
		{ID: "b", Count: 2, PositiveCount: 0},
		{ID: "c", Count: 3, PositiveCount: 1},
	}}
	ids := func(list []*models.Student) []string {
		out := make([]string, 0, len(list))
		for _, s := range list {
			out = append(out, s.ID)
		}
		return out
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids(Filter(class, 0, 0)))
	assert.Equal(t, []string{"b", "c"}, ids(Filter(class, 2, 0)))
	assert.Equal(t, []string{"c"}, ids(Filter(class, 1, 1)))
}

func TestNamesFromXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "Ana"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "  "))
	require.NoError(t, f.SetCellValue(sheet, "A3", "Luis Pérez"))
	require.NoError(t, f.SetCellValue(sheet, "B3", "ignored"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	names, err := NamesFromXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana", "Luis Pérez"}, names)
}

func TestNamesFromXLSXRejectsGarbage(t *testing.T) {
	_, err := NamesFromXLSX(strings.NewReader("not a workbook"))
	assert.ErrorIs(t, err, appErrors.ErrUnreadableFile)
}

func TestExtractCandidates(t *testing.T) {
	text := strings.Join([]string{
		"Informe de evaluación",
		"García López, Ana",
		"• Luis Pérez - 9.5",
		"Marta Ruiz (12)",
		"1   Pedro Gómez   Aprobado",
		"Luis Pérez",
		"",
	}, "\n")

	got := ExtractCandidates(text)
	assert.Equal(t, []string{"Ana García López", "Luis Pérez", "Marta Ruiz", "Pedro Gómez"}, got)
}
