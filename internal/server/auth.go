package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"chat-quality-go/internal/session"
)

type loginPayload struct {
	BaseURL string `json:"base_url" validate:"required,url"`
	Token   string `json:"token" validate:"required"`
	// Remember persists the credentials for auto-login on restart.
	Remember bool `json:"remember"`
}

func (s *Server) login(c echo.Context) error {
	log := s.log.WithRequest(c.Request())

	var p loginPayload
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid login payload")
	}
	if err := c.Validate(&p); err != nil {
		return err
	}

	creds := session.Credentials{BaseURL: p.BaseURL, Token: p.Token}
	sess := s.opts.Store.Open(creds)
	if p.Remember && s.opts.CredStore != nil {
		if err := s.opts.CredStore.Save(creds); err != nil {
			log.WithError(err).Warn("credential persistence failed")
		}
	}
	log.WithField("session_id", sess.ID).Info("session opened")

	return c.JSON(http.StatusOK, map[string]string{
		"session_id": sess.ID,
		"base_url":   p.BaseURL,
	})
}

func (s *Server) logout(c echo.Context) error {
	log := s.log.WithRequest(c.Request())
	s.opts.Store.Close()
	if s.opts.CredStore != nil {
		if err := s.opts.CredStore.Clear(); err != nil {
			log.WithError(err).Warn("credential clear failed")
		}
	}
	log.Info("session closed")
	return c.NoContent(http.StatusNoContent)
}

// sessionInfo reports the login state. When nobody is logged in but
// credentials survive from a previous run, it reopens a session with
// them so a returning supervisor lands directly on the dashboard.
func (s *Server) sessionInfo(c echo.Context) error {
	sess, err := s.opts.Store.Active()
	if err != nil && s.opts.CredStore != nil {
		if creds, ok := s.opts.CredStore.Load(); ok {
			sess = s.opts.Store.Open(creds)
			s.log.WithRequest(c.Request()).WithField("session_id", sess.ID).Info("session restored from stored credentials")
			err = nil
		}
	}
	if err != nil {
		return c.JSON(http.StatusOK, map[string]any{"active": false})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"active":     true,
		"session_id": sess.ID,
		"base_url":   sess.Credentials().BaseURL,
	})
}
