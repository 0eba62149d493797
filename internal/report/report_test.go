package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/report"
)

func TestSummarize(t *testing.T) {
	course := &domain.Course{ID: "c1", Title: "Go"}

	tests := map[string]struct {
		score, total int
		course       *domain.Course
		want         func(t *testing.T, s report.Summary)
	}{
		"excellent": {
			score: 4, total: 5, course: course,
			want: func(t *testing.T, s report.Summary) {
				assert.Equal(t, "80", s.Percentage.String())
				assert.True(t, s.Passed)
				assert.Equal(t, "Excellent Job!", s.Feedback)
				assert.Equal(t, "Go", s.CourseTitle)
			},
		},
		"good effort at the pass mark": {
			score: 1, total: 2, course: course,
			want: func(t *testing.T, s report.Summary) {
				assert.Equal(t, "50", s.Percentage.String())
				assert.True(t, s.Passed)
				assert.Equal(t, "Good Effort!", s.Feedback)
			},
		},
		"keep practicing": {
			score: 1, total: 3, course: course,
			want: func(t *testing.T, s report.Summary) {
				assert.Equal(t, "33", s.Percentage.String())
				assert.False(t, s.Passed)
				assert.Equal(t, "Keep Practicing!", s.Feedback)
			},
		},
		"empty course and deleted course": {
			score: 0, total: 0, course: nil,
			want: func(t *testing.T, s report.Summary) {
				assert.Equal(t, "0", s.Percentage.String())
				assert.False(t, s.Passed)
				assert.Equal(t, "(deleted course)", s.CourseTitle)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := domain.ExamResult{ID: "r1", CourseID: "c1", Score: tt.score, TotalQuestions: tt.total}
			tt.want(t, report.Summarize(r, tt.course))
		})
	}
}

func TestExportXLSX(t *testing.T) {
	submitted := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	results := []domain.ExamResult{
		{ID: "r1", CourseID: "c1", UserID: "u1", Score: 2, TotalQuestions: 3, SubmitTime: domain.UnixMilli(submitted)},
		{ID: "r2", CourseID: "gone", UserID: "u9", Score: 0, TotalQuestions: 1, SubmitTime: domain.UnixMilli(submitted)},
	}
	courses := []domain.Course{{ID: "c1", Title: "Go"}}
	users := []domain.User{{ID: "u1", Username: "alice"}}

	var buf bytes.Buffer
	require.NoError(t, report.ExportXLSX(&buf, results, courses, users))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Result ID", "Username", "Course", "Score", "Total Questions", "Percentage", "Passed", "Submitted At"}, rows[0])
	assert.Equal(t, []string{"r1", "alice", "Go", "2", "3", "67", "TRUE", "2025-01-02T03:04:05Z"}, rows[1])
	assert.Equal(t, []string{"r2", "u9", "(deleted course)", "0", "1", "0", "FALSE", "2025-01-02T03:04:05Z"}, rows[2])
}

func TestExportXLSX_NoResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.ExportXLSX(&buf, nil, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
