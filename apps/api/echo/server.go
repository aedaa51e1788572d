package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/evidence"
	"github.com/rumboapp/rumbo/core/plan"
	"github.com/rumboapp/rumbo/core/quarter"
	"github.com/rumboapp/rumbo/core/user"
)

type (
	ServerDeps struct {
		Conf        *core.Config
		Logger      core.Logger
		UserSvc     *user.Service
		PlanSvc     *plan.Service
		QuarterSvc  *quarter.Service
		EvidenceSvc *evidence.Service

		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errs     chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errs:     make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	admin := adminMiddleware()

	registerUserAPI(v1, jwt, admin, s.deps)
	registerPlanAPI(v1, jwt, admin, s.deps)
	registerQuarterAPI(v1, jwt, admin, s.deps)
	registerEvidenceAPI(v1, jwt, admin, s.deps)
}

func (s *Server) Start() {
	s.errs <- s.app.Start(s.deps.Conf.Server.Addr)
}

// Errors reports fatal server errors.
func (s *Server) Errors() <-chan error {
	return s.errs
}

// ShutdownSignal reports OS interrupt/terminate signals and any shutdown
// requests signaled from within the app.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	signal.Notify(s.shutdown, syscall.SIGINT, syscall.SIGTERM)
	return s.shutdown
}

// SignalShutdown requests a graceful shutdown of the Server.
func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Bienvenido al API de Rumbo!")
}
