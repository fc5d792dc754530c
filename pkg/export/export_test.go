package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sheet() Dataset {
	return Dataset{
		Headers: []string{"student", "grade", "failed"},
		Rows: []map[string]string{
			{"student": "Nino", "grade": "87.5", "failed": "false"},
			{"student": "Giorgi", "grade": "40", "failed": "true"},
		},
	}
}

func TestCSVExporter(t *testing.T) {
	out, err := NewCSVExporter().Render(sheet())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "student,grade,failed", lines[0])
	assert.Equal(t, "Giorgi,40,true", lines[2])

	_, err = NewCSVExporter().Render(Dataset{})
	assert.ErrorIs(t, err, ErrNoHeaders)
}

func TestCSVExporterDialect(t *testing.T) {
	out, err := NewCSVExporter(WithBOM(), WithDelimiter(';')).Render(Dataset{
		Headers: []string{"student", "grade"},
		Rows:    []map[string]string{{"student": "ნინო; ბერიძე", "grade": "91,5"}},
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, utf8BOM))
	assert.Equal(t, "student;grade\n\"ნინო; ბერიძე\";91,5\n", string(out[len(utf8BOM):]))
}

func TestXLSXExporter(t *testing.T) {
	out, err := NewXLSXExporter("Grades").Render(sheet())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Grades"}, f.GetSheetList())
	rows, err := f.GetRows("Grades")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Nino", "87.5", "false"}, rows[1])
}

func TestPDFExporter(t *testing.T) {
	out, err := NewPDFExporter().Render(Document{
		Title:    "Syllabus",
		Fields:   []Field{{Label: "Course", Value: "Calculus I"}},
		Sections: []Section{{Title: "Assessment", Body: "Final Exam 40"}},
		Table:    &Dataset{Headers: []string{"week", "topic"}, Rows: []map[string]string{{"week": "1", "topic": "Limits"}}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Document{})
	assert.Error(t, err)
}
