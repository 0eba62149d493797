// Package report turns stored exam results into learner feedback and admin exports.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/scoring"
)

const unknownCourse = "(deleted course)"

type Summary struct {
	Result      domain.ExamResult `json:"result"`
	CourseTitle string            `json:"courseTitle"`
	Percentage  decimal.Decimal   `json:"percentage"`
	Passed      bool              `json:"passed"`
	Feedback    string            `json:"feedback"`
}

// Summarize describes a result. The course may be nil when it has been deleted since.
func Summarize(r domain.ExamResult, c *domain.Course) Summary {
	title := unknownCourse
	if c != nil {
		title = c.Title
	}

	p := scoring.Percentage(r.Score, r.TotalQuestions)

	return Summary{
		Result:      r.Clone(),
		CourseTitle: title,
		Percentage:  p,
		Passed:      scoring.Passed(r.Score, r.TotalQuestions),
		Feedback:    scoring.Feedback(p),
	}
}

const sheetName = "Results"

var header = []any{"Result ID", "Username", "Course", "Score", "Total Questions", "Percentage", "Passed", "Submitted At"}

// ExportXLSX writes one spreadsheet row per result, in the given order.
func ExportXLSX(w io.Writer, results []domain.ExamResult, courses []domain.Course, users []domain.User) (err error) {
	titles := make(map[string]string, len(courses))
	for _, c := range courses {
		titles[c.ID] = c.Title
	}

	usernames := make(map[string]string, len(users))
	for _, u := range users {
		usernames[u.ID] = u.Username
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("report: close workbook: %w", cerr)
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}

	for i, r := range results {
		title, ok := titles[r.CourseID]
		if !ok {
			title = unknownCourse
		}

		username, ok := usernames[r.UserID]
		if !ok {
			username = r.UserID
		}

		row := []any{
			r.ID,
			username,
			title,
			r.Score,
			r.TotalQuestions,
			scoring.Percentage(r.Score, r.TotalQuestions).IntPart(),
			scoring.Passed(r.Score, r.TotalQuestions),
			r.SubmitTime.Time().UTC().Format(time.RFC3339),
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("report: cell name: %w", err)
		}

		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("report: write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("report: write workbook: %w", err)
	}

	return nil
}
