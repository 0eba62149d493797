package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/examiner/internal/account"
	"github.com/victornm/examiner/internal/api"
	"github.com/victornm/examiner/internal/course"
	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/event"
	"github.com/victornm/examiner/internal/exam"
	"github.com/victornm/examiner/internal/leaderboard"
	"github.com/victornm/examiner/internal/notify"
	"github.com/victornm/examiner/internal/store"
	"github.com/victornm/examiner/internal/store/pgstore"
	"github.com/victornm/examiner/internal/store/redisstore"
	"github.com/victornm/examiner/internal/store/sqlstore"
	"github.com/victornm/examiner/internal/telemetry"
)

const (
	DriverMemory      = "memory"
	DriverRedis       = "redis"
	DriverSQLite      = "sqlite"
	DriverPostgres    = "postgres"
	DriverPostgresSQL = "postgres-sql"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log struct {
		// Format is json or text.
		Format string
		Level  string
	}

	Store struct {
		// Driver is one of memory, redis, sqlite, postgres (pgx pool) or postgres-sql (database/sql).
		Driver string
		Prefix string
		// DSN is used by the sqlite and postgres-sql drivers.
		DSN string
	}

	Redis struct {
		Store struct {
			Addrs []string
			Pass  string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
			// Ticks publishes the per-second tick sound as well.
			Ticks bool
		}

		// Leaderboard is disabled when Addrs is empty.
		Leaderboard struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}
}

func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Log.Format = "json"
	c.Log.Level = "info"
	c.Store.Driver = DriverMemory
	c.Store.Prefix = store.DefaultPrefix
	c.Redis.Pubsub.Prefix = "examiner"
	c.Redis.Leaderboard.Prefix = "examiner"
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			store       redis.UniversalClient
			pubsub      redis.UniversalClient
			leaderboard redis.UniversalClient
		}

		postgres *pgxpool.Pool
		sql      *sqlstore.Backend
	}

	store    *store.Store
	notifier exam.Notifier
	pubsub   api.Publisher

	service struct {
		account *account.Service
		course  *course.Service
		exam    *exam.Service

		leaderboard *leaderboard.Service
	}

	api  *api.API
	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := s.initPubsub(); err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	if len(s.c.Redis.Leaderboard.Addrs) > 0 {
		r, err := connectRedis(s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass, "leaderboard")
		if err != nil {
			return fmt.Errorf("leaderboard: %w", err)
		}
		s.infra.redis.leaderboard = r
	}

	return nil
}

func (s *Server) initStore() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var b store.Backend
	switch s.c.Store.Driver {
	case DriverMemory, "":
		b = store.NewMemory()

	case DriverRedis:
		r, err := connectRedis(s.c.Redis.Store.Addrs, s.c.Redis.Store.Pass, "store")
		if err != nil {
			return err
		}
		s.infra.redis.store = r
		b = redisstore.New(redisstore.Config{Redis: r})

	case DriverSQLite, DriverPostgresSQL:
		drv := sqlstore.DriverSQLite
		if s.c.Store.Driver == DriverPostgresSQL {
			drv = sqlstore.DriverPostgres
		}

		db, err := sqlstore.Open(ctx, drv, s.c.Store.DSN)
		if err != nil {
			return err
		}
		s.infra.sql = db
		b = db

	case DriverPostgres:
		db, err := connectPostgres(ctx, s.c.Postgres.Addr, s.c.Postgres.User, s.c.Postgres.Pass, s.c.Postgres.Name)
		if err != nil {
			return err
		}
		s.infra.postgres = db

		pg := pgstore.New(pgstore.Config{DB: db})
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		b = pg

	default:
		return fmt.Errorf("unknown driver %q", s.c.Store.Driver)
	}

	s.store = store.New(store.Config{
		Backend: b,
		Prefix:  s.c.Store.Prefix,
	})

	slog.InfoContext(ctx, fmt.Sprintf("server: using %s store", s.c.Store.Driver))
	return nil
}

func (s *Server) initPubsub() error {
	if len(s.c.Redis.Pubsub.Addrs) == 0 {
		s.notifier = notify.Nop{}
		return nil
	}

	r, err := connectRedis(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass, "pubsub")
	if err != nil {
		return err
	}
	s.infra.redis.pubsub = r

	var skip []domain.SoundKind
	if !s.c.Redis.Pubsub.Ticks {
		skip = append(skip, domain.SoundTick)
	}

	n := notify.NewRedis(notify.RedisConfig{
		Redis:  r,
		Prefix: s.c.Redis.Pubsub.Prefix,
		Skip:   skip,
	})
	s.notifier = n
	s.pubsub = n

	return nil
}

func connectRedis(addrs []string, pass, name string) (redis.UniversalClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: pass,
	})

	if err := telemetry.MonitorRedis(r, name); err != nil {
		return nil, err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return r, nil
}

func connectPostgres(ctx context.Context, addr, user, pass, name string) (*pgxpool.Pool, error) {
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", user, pass, addr, name))
	if err != nil {
		return nil, err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (s *Server) initService() {
	s.service.account = account.NewService(account.Config{
		Store: s.store,
	})

	s.service.course = course.NewService(course.Config{
		Store: s.store,
	})

	s.service.exam = exam.NewService(exam.Config{
		Courses:  s.store,
		Results:  s.store,
		Notifier: s.notifier,
		EventBus: s.eb,
	})

	if s.infra.redis.leaderboard != nil {
		s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
			EventBus: s.eb,
			Users:    s.store,
			Redis:    s.infra.redis.leaderboard,
			Prefix:   s.c.Redis.Leaderboard.Prefix,
		})
	}
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.HTTPLogger())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptors()...)

	s.api = api.New(api.Config{
		Router:   e,
		GRPC:     s.grpc,
		EventBus: s.eb,
		Accounts: s.service.account,
		Courses:  s.service.course,
		Exams:    s.service.exam,
		Store:    s.store,
		Pubsub:   s.pubsub,

		Leaderboard: s.service.leaderboard,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// Handler exposes the HTTP routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

// Shutdown drains traffic first, then drops live exam sessions and closes the infrastructure.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.api.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.service.exam.Stop()
	s.eb.Stop()
	s.closeInfra()

	slog.InfoContext(ctx, "server: shutdown completed")
}

func (s *Server) closeInfra() {
	for name, r := range map[string]redis.UniversalClient{
		"store":       s.infra.redis.store,
		"pubsub":      s.infra.redis.pubsub,
		"leaderboard": s.infra.redis.leaderboard,
	} {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil {
			slog.Error("server: close redis failed", "client", name, "error", err)
		}
	}

	if s.infra.sql != nil {
		if err := s.infra.sql.Close(); err != nil {
			slog.Error("server: close sql store failed", "error", err)
		}
	}

	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}
}
