// Package server is the dashboard's HTTP surface: login, chat browsing,
// evaluation runs, score corrections and the printable export.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"chat-quality-go/internal/directory"
	"chat-quality-go/internal/evaluator"
	"chat-quality-go/internal/logger"
	"chat-quality-go/internal/rubric"
	"chat-quality-go/internal/session"
	"chat-quality-go/internal/transcript"
	"chat-quality-go/internal/types"
)

// PlatformAPI is the slice of the chat platform client the handlers
// use.
type PlatformAPI interface {
	GetChats(ctx context.Context, limit, offset int) ([]types.Chat, error)
	GetMessages(ctx context.Context, chatID int64, limit int) ([]types.Message, error)
	GetMessagesByDialog(ctx context.Context, dialogID int64, limit int) ([]types.Message, error)
	GetUsers(ctx context.Context, limit int) ([]types.User, error)
}

// Options wires the server's collaborators.
type Options struct {
	Store     *session.Store
	CredStore *session.CredStore
	Roster    []directory.RosterEntry
	Rubric    *rubric.Rubric
	Oracle    evaluator.Scorer
	Assembler transcript.Assembler
	// NewAPI builds a platform client for a session's credentials.
	NewAPI func(creds session.Credentials) PlatformAPI
	// ScoreDelay paces consecutive oracle calls in a batch.
	ScoreDelay time.Duration
}

// Server carries the handler state.
type Server struct {
	opts Options
	log  *logger.Logger
}

// New builds the server.
func New(opts Options) *Server {
	if opts.Rubric == nil {
		opts.Rubric = rubric.Default()
	}
	return &Server{opts: opts, log: logger.New().WithComponent("server")}
}

type payloadValidator struct {
	v *validator.Validate
}

func (pv payloadValidator) Validate(i interface{}) error {
	if err := pv.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Echo builds the routed echo instance.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = payloadValidator{v: validator.New()}
	e.Use(middleware.Recover())

	e.GET("/healthz", s.health)

	api := e.Group("/api")
	api.POST("/login", s.login)
	api.POST("/logout", s.logout)
	api.GET("/session", s.sessionInfo)

	api.GET("/chats", s.listChats)
	api.GET("/chats/:id/messages", s.chatMessages)
	api.GET("/managers", s.listManagers)

	api.POST("/evaluations", s.runEvaluations)
	api.GET("/evaluations", s.listEvaluations)
	api.GET("/evaluations/averages", s.averages)
	api.GET("/evaluations/coaching", s.coachingCard)
	api.GET("/evaluations/export", s.exportWorkbook)
	api.POST("/evaluations/:index/score", s.editScore)
	api.POST("/evaluations/:index/rescore", s.rescore)

	return e
}

func (s *Server) health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// active resolves the logged-in session and its platform client.
func (s *Server) active(c echo.Context) (*session.Session, PlatformAPI, error) {
	sess, err := s.opts.Store.Active()
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}
	return sess, s.opts.NewAPI(sess.Credentials()), nil
}

func fail(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]string{"error": err.Error()})
}
