package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"chat-quality-go/internal/directory"
	"chat-quality-go/internal/paginate"
	"chat-quality-go/internal/types"
)

// listChats deep-fetches the chat listing for the requested date window
// and refreshes the session cache. The epoch guard keeps a slow reload
// from clobbering a newer one when the supervisor changes the window
// mid-flight.
func (s *Server) listChats(c echo.Context) error {
	log := s.log.WithRequest(c.Request())
	sess, api, err := s.active(c)
	if err != nil {
		return err
	}

	w, err := windowFromQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err)
	}

	epoch := sess.BeginLoad()
	ctx := c.Request().Context()

	chats, err := paginate.Collect(ctx,
		func(ctx context.Context, limit, offset int) ([]types.Chat, error) {
			return api.GetChats(ctx, limit, offset)
		},
		w,
		func(ch types.Chat) int64 { return ch.ID },
		types.Chat.ActivityAt,
		paginate.Options{},
	)
	if err != nil {
		log.WithError(err).Error("chat load failed")
		return fail(c, http.StatusBadGateway, err)
	}

	dir := sess.Directory()
	if dir == nil {
		dir, err = directory.Load(ctx, api, s.opts.Roster)
		if err != nil {
			log.WithError(err).Error("directory load failed")
			return fail(c, http.StatusBadGateway, err)
		}
		sess.SetDirectory(dir)
	}
	managers := dir.Managers(chats)

	if !sess.CommitChats(epoch, chats, managers) {
		log.Warn("discarding stale chat load")
		return echo.NewHTTPError(http.StatusConflict, "a newer load superseded this one")
	}

	log.WithField("chats", len(chats)).WithField("managers", len(managers)).Info("chat window loaded")
	return c.JSON(http.StatusOK, map[string]any{
		"chats":    chats,
		"managers": managers,
	})
}

func (s *Server) chatMessages(c echo.Context) error {
	_, api, err := s.active(c)
	if err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid chat id")
	}

	messages, err := api.GetMessages(c.Request().Context(), chatID, paginate.DefaultPageSize)
	if err != nil {
		return fail(c, http.StatusBadGateway, err)
	}
	return c.JSON(http.StatusOK, messages)
}

func (s *Server) listManagers(c echo.Context) error {
	sess, _, err := s.active(c)
	if err != nil {
		return err
	}
	managers := sess.Managers()
	if managers == nil {
		managers = []types.Manager{}
	}
	return c.JSON(http.StatusOK, managers)
}

// windowFromQuery parses optional from/to query params. Both or
// neither: a half-open window is a client bug worth rejecting.
func windowFromQuery(c echo.Context) (paginate.Window, error) {
	from, to := c.QueryParam("from"), c.QueryParam("to")
	if from == "" && to == "" {
		return paginate.Window{}, nil
	}
	if from == "" || to == "" {
		return paginate.Window{}, fmt.Errorf("from and to must be given together")
	}
	return paginate.NewWindow(from, to, time.Local)
}
