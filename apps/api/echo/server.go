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

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/certificate"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/progression"
	"github.com/trezcool/elimu/core/user"
)

type (
	// ServerDeps carries everything the API server needs. All fields are
	// required unless stated otherwise.
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool

		UserSvc      *user.Service
		CatalogSvc   *catalog.Service
		EnrollSvc    *enrollment.Service
		ProgSvc      *progression.Service
		CertSvc      *certificate.Service
		CertRenderer certificate.Renderer

		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		deps ServerDeps
		app  *echo.Echo

		serverErrors chan error
		shutdownSig  chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:         deps,
		app:          echo.New(),
		serverErrors: make(chan error, 1),
		shutdownSig:  make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdownSig, syscall.SIGINT, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	registerUserAPI(v1, jwt, s.deps)
	registerCatalogAPI(v1, jwt, s.deps)
	registerEnrollmentAPI(v1, jwt, s.deps)
	registerProgressionAPI(v1, jwt, s.deps)
	registerCertificateAPI(v1, jwt, s.deps)
}

// Start serves the API; it never blocks. Failures surface on Errors().
func (s *Server) Start() {
	go func() {
		s.serverErrors <- s.app.Start(s.deps.Conf.Server.Addr)
	}()
}

// Errors reports a failed listener. The server is unusable afterwards.
func (s *Server) Errors() <-chan error {
	return s.serverErrors
}

// ShutdownSignal receives SIGINT/SIGTERM and app-requested shutdowns.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdownSig
}

// signalShutdown requests a graceful shutdown from within a request.
func (s *Server) signalShutdown() {
	s.shutdownSig <- syscall.SIGTERM
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
	return ctx.String(http.StatusOK, "Welcome to Elimu API!")
}
