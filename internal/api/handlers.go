package api

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/examiner/internal/account"
	"github.com/victornm/examiner/internal/course"
	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/errors"
	"github.com/victornm/examiner/internal/exam"
	"github.com/victornm/examiner/internal/leaderboard"
	"github.com/victornm/examiner/internal/report"
	"github.com/victornm/examiner/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (a *API) login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := a.accounts.Login(c.Request.Context(), account.LoginRequest{Username: req.Username})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

func (a *API) logout(c *gin.Context) {
	if err := a.accounts.Logout(c.Request.Context()); err != nil {
		renderError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (a *API) listCourses(c *gin.Context) {
	courses, err := a.courses.List(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	admin := currentUser(c).IsAdmin()
	resp := make([]Course, 0, len(courses))
	for _, co := range courses {
		resp = append(resp, toCourse(co, admin))
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) getCourse(c *gin.Context) {
	co, err := a.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCourse(*co, currentUser(c).IsAdmin()))
}

func (a *API) getLeaderboard(c *gin.Context) {
	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		CourseID: c.Param("id"),
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}

func (a *API) createCourse(c *gin.Context) {
	var req course.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	co, err := a.courses.Create(c.Request.Context(), req)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toCourse(*co, true))
}

func (a *API) deleteCourse(c *gin.Context) {
	ctx := c.Request.Context()
	if err := a.courses.Delete(ctx, c.Param("id")); err != nil {
		renderError(c, err)
		return
	}

	if a.ls != nil {
		if err := a.ls.Remove(ctx, c.Param("id")); err != nil {
			slog.WarnContext(ctx, "api: remove leaderboard failed", "course", c.Param("id"), "error", err)
		}
	}

	c.Status(http.StatusNoContent)
}

func (a *API) addQuestion(c *gin.Context) {
	var req course.QuestionRequest
	if !bindJSON(c, &req) {
		return
	}

	q, err := a.courses.AddQuestion(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, q)
}

func (a *API) deleteQuestion(c *gin.Context) {
	if err := a.courses.DeleteQuestion(c.Request.Context(), c.Param("id"), c.Param("qid")); err != nil {
		renderError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) startExam(c *gin.Context) {
	var req StartExamRequest
	if !bindJSON(c, &req) {
		return
	}

	v, err := a.exams.Start(c.Request.Context(), exam.StartRequest{
		CourseID: req.CourseID,
		UserID:   currentUser(c).ID,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toExam(v))
}

func (a *API) getExam(c *gin.Context) {
	v, err := a.exams.Get(c.Request.Context(), exam.GetRequest{
		SessionID: c.Param("id"),
		UserID:    currentUser(c).ID,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toExam(v))
}

func (a *API) selectOption(c *gin.Context) {
	var req SelectOptionRequest
	if !bindJSON(c, &req) {
		return
	}

	v, err := a.exams.Select(c.Request.Context(), exam.SelectRequest{
		SessionID:  c.Param("id"),
		UserID:     currentUser(c).ID,
		QuestionID: req.QuestionID,
		OptionID:   req.OptionID,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toExam(v))
}

func (a *API) navigate(c *gin.Context) {
	var req NavigateRequest
	if !bindJSON(c, &req) {
		return
	}

	if req.Index == nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("index is required")))
		return
	}

	v, err := a.exams.Navigate(c.Request.Context(), exam.NavigateRequest{
		SessionID: c.Param("id"),
		UserID:    currentUser(c).ID,
		Index:     *req.Index,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toExam(v))
}

func (a *API) submitExam(c *gin.Context) {
	r, err := a.exams.Submit(c.Request.Context(), exam.SubmitRequest{
		SessionID: c.Param("id"),
		UserID:    currentUser(c).ID,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, a.summarize(c.Request.Context(), *r))
}

func (a *API) abandonExam(c *gin.Context) {
	err := a.exams.Abandon(c.Request.Context(), exam.AbandonRequest{
		SessionID: c.Param("id"),
		UserID:    currentUser(c).ID,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// listResults returns the caller's results. Admins see everyone's and may filter by userId.
func (a *API) listResults(c *gin.Context) {
	u := currentUser(c)
	f := store.ResultFilter{
		UserID:   u.ID,
		CourseID: c.Query("courseId"),
	}
	if u.IsAdmin() {
		f.UserID = c.Query("userId")
	}

	results, err := a.store.ListResults(c.Request.Context(), f)
	if err != nil {
		renderError(c, err)
		return
	}

	resp := make([]Result, 0, len(results))
	for _, r := range results {
		resp = append(resp, a.summarize(c.Request.Context(), r))
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) getResult(c *gin.Context) {
	r, err := a.store.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	if u := currentUser(c); !u.IsAdmin() && r.UserID != u.ID {
		renderError(c, errors.New(errors.CodeNotFound, errors.WithMessagef("result not found: id=%s", r.ID)))
		return
	}

	c.JSON(http.StatusOK, a.summarize(c.Request.Context(), r))
}

func (a *API) exportResults(c *gin.Context) {
	ctx := c.Request.Context()

	results, err := a.store.ListResults(ctx, store.ResultFilter{CourseID: c.Query("courseId")})
	if err != nil {
		renderError(c, err)
		return
	}

	courses, err := a.store.ListCourses(ctx)
	if err != nil {
		renderError(c, err)
		return
	}

	users, err := a.store.ListUsers(ctx)
	if err != nil {
		renderError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.ExportXLSX(&buf, results, courses, users); err != nil {
		renderError(c, err)
		return
	}

	name := fmt.Sprintf("results-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// summarize decorates a stored result with its course title and feedback.
func (a *API) summarize(ctx context.Context, r domain.ExamResult) Result {
	var co *domain.Course
	if found, err := a.store.GetCourse(ctx, r.CourseID); err == nil {
		co = &found
	}

	return toResult(report.Summarize(r, co))
}
