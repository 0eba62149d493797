package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/examiner/internal/account"
	"github.com/victornm/examiner/internal/course"
	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/event"
	"github.com/victornm/examiner/internal/exam"
	"github.com/victornm/examiner/internal/leaderboard"
	"github.com/victornm/examiner/internal/store"
)

// ServiceName is the gRPC health service name reported besides the overall status.
const ServiceName = "examiner.v1.ExamService"

type Config struct {
	Router   gin.IRouter
	GRPC     *grpc.Server
	EventBus *event.Bus

	Accounts *account.Service
	Courses  *course.Service
	Exams    *exam.Service
	Store    *store.Store
	// Leaderboard is optional; without it the leaderboard route is not served.
	Leaderboard *leaderboard.Service

	// Pubsub, when set, receives an exam.submitted notification for the learner and every admin.
	Pubsub Publisher
}

type Publisher interface {
	Publish(ctx context.Context, userID, event string, data any) error
}

type API struct {
	accounts *account.Service
	courses  *course.Service
	exams    *exam.Service
	store    *store.Store
	ls       *leaderboard.Service

	pubsub Publisher
	health *health.Server
}

func New(c Config) *API {
	a := &API{
		accounts: c.Accounts,
		courses:  c.Courses,
		exams:    c.Exams,
		store:    c.Store,
		ls:       c.Leaderboard,
		pubsub:   c.Pubsub,
		health:   health.NewServer(),
	}

	// HTTP APIs
	if c.Router != nil {
		a.registerRoutes(c.Router.Group("/api"))
	}

	// gRPC APIs
	if c.GRPC != nil {
		healthpb.RegisterHealthServer(c.GRPC, a.health)
	}
	a.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Register event handlers
	if a.pubsub != nil && c.EventBus != nil {
		event.On(c.EventBus, domain.EventNameExamSubmitted, a.PublishExamSubmitted)
		event.On(c.EventBus, domain.EventNameLeaderboardUpdated, a.PublishLeaderboardUpdated)
	}

	return a
}

func (a *API) registerRoutes(r gin.IRouter) {
	r.POST("/login", a.login)
	r.POST("/logout", a.logout)

	authed := r.Group("", a.authenticate)
	authed.GET("/me", a.me)
	authed.GET("/courses", a.listCourses)
	authed.GET("/courses/:id", a.getCourse)
	if a.ls != nil {
		authed.GET("/courses/:id/leaderboard", a.getLeaderboard)
	}

	authed.POST("/exams", a.startExam)
	authed.GET("/exams/:id", a.getExam)
	authed.PUT("/exams/:id/answers", a.selectOption)
	authed.PUT("/exams/:id/position", a.navigate)
	authed.POST("/exams/:id/submit", a.submitExam)
	authed.DELETE("/exams/:id", a.abandonExam)

	authed.GET("/results", a.listResults)
	authed.GET("/results/:id", a.getResult)

	admin := authed.Group("", requireAdmin)
	admin.POST("/courses", a.createCourse)
	admin.DELETE("/courses/:id", a.deleteCourse)
	admin.POST("/courses/:id/questions", a.addQuestion)
	admin.DELETE("/courses/:id/questions/:qid", a.deleteQuestion)
	admin.GET("/results/export", a.exportResults)
}

// Shutdown reports NOT_SERVING to health checks.
func (a *API) Shutdown() {
	a.health.Shutdown()
}
