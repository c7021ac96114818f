package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"chat-quality-go/internal/coaching"
	"chat-quality-go/internal/evaluator"
	"chat-quality-go/internal/export"
	"chat-quality-go/internal/paginate"
	"chat-quality-go/internal/scores"
	"chat-quality-go/internal/types"
)

type runPayload struct {
	ManagerID   int64  `json:"manager_id"`
	ManagerName string `json:"manager_name"`
	From        string `json:"from"`
	To          string `json:"to"`
	ClosedOnly  bool   `json:"closed_only"`
	SampleSize  int    `json:"sample_size" validate:"gte=0,lte=50"`

	DialogIDs []int64 `json:"dialog_ids"`
	DialogID  int64   `json:"dialog_id"`
}

func (s *Server) runEvaluations(c echo.Context) error {
	log := s.log.WithRequest(c.Request())
	sess, api, err := s.active(c)
	if err != nil {
		return err
	}

	var p runPayload
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid evaluation payload")
	}
	if err := c.Validate(&p); err != nil {
		return err
	}

	req := evaluator.Request{
		ManagerID:      p.ManagerID,
		ManagerName:    p.ManagerName,
		ClosedOnly:     p.ClosedOnly,
		SampleSize:     p.SampleSize,
		DialogIDs:      p.DialogIDs,
		SingleDialogID: p.DialogID,
	}
	if p.From != "" || p.To != "" {
		w, err := windowFromPayload(p.From, p.To)
		if err != nil {
			return fail(c, http.StatusBadRequest, err)
		}
		req.Window = w
	}
	if req.ManagerName == "" && req.ManagerID != 0 {
		if dir := sess.Directory(); dir != nil {
			if u, ok := dir.User(req.ManagerID); ok {
				req.ManagerName = u.FullName()
			}
		}
	}

	ev := s.newEvaluator(api)
	start := time.Now()
	results, err := ev.Run(c.Request().Context(), sess.Chats(), req, func(done, total int) {
		log.WithField("done", done).WithField("total", total).Debug("evaluation progress")
	})
	if err != nil {
		log.WithError(err).Warn("evaluation run failed")
		return fail(c, http.StatusUnprocessableEntity, err)
	}
	sess.SetResults(req, results)

	log.WithField("results", len(results)).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("evaluation batch finished")
	return c.JSON(http.StatusOK, results)
}

func (s *Server) listEvaluations(c echo.Context) error {
	sess, _, err := s.active(c)
	if err != nil {
		return err
	}
	results := sess.Results()
	if results == nil {
		results = []types.EvaluationResult{}
	}
	return c.JSON(http.StatusOK, results)
}

type editPayload struct {
	Section   string  `json:"section" validate:"required"`
	Criterion string  `json:"criterion" validate:"required"`
	Value     float64 `json:"value"`
}

func (s *Server) editScore(c echo.Context) error {
	sess, _, err := s.active(c)
	if err != nil {
		return err
	}
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid result index")
	}

	var p editPayload
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid edit payload")
	}
	if err := c.Validate(&p); err != nil {
		return err
	}

	err = sess.UpdateResults(func(rs []types.EvaluationResult) ([]types.EvaluationResult, error) {
		if err := scores.EditSubScore(rs, idx, p.Section, p.Criterion, p.Value); err != nil {
			return nil, err
		}
		return rs, nil
	})
	if err != nil {
		return fail(c, http.StatusUnprocessableEntity, err)
	}
	return c.JSON(http.StatusOK, sess.Results()[idx])
}

func (s *Server) rescore(c echo.Context) error {
	log := s.log.WithRequest(c.Request())
	sess, api, err := s.active(c)
	if err != nil {
		return err
	}
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid result index")
	}

	ev := s.newEvaluator(api)
	err = sess.UpdateResults(func(rs []types.EvaluationResult) ([]types.EvaluationResult, error) {
		return ev.Rescore(c.Request().Context(), sess.Chats(), rs, idx, sess.LastRun())
	})
	if err != nil {
		log.WithError(err).Warn("rescore failed")
		return fail(c, http.StatusUnprocessableEntity, err)
	}
	log.WithField("index", idx).Info("result rescored")
	return c.JSON(http.StatusOK, sess.Results()[idx])
}

func (s *Server) averages(c echo.Context) error {
	sess, _, err := s.active(c)
	if err != nil {
		return err
	}
	avg, ok := scores.ComputeAverages(sess.Results())
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no scored evaluations yet")
	}
	return c.JSON(http.StatusOK, avg)
}

func (s *Server) coachingCard(c echo.Context) error {
	sess, _, err := s.active(c)
	if err != nil {
		return err
	}
	avg, ok := scores.ComputeAverages(sess.Results())
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no scored evaluations yet")
	}
	return c.JSON(http.StatusOK, coaching.Generate(s.opts.Rubric, avg))
}

func (s *Server) exportWorkbook(c echo.Context) error {
	log := s.log.WithRequest(c.Request())
	sess, _, err := s.active(c)
	if err != nil {
		return err
	}

	results := sess.Results()
	f, err := export.Workbook(s.opts.Rubric, results, sess.LastRun().ManagerName)
	if err != nil {
		return fail(c, http.StatusUnprocessableEntity, err)
	}

	fileName := export.Filename(sess.LastRun().ManagerName, time.Now())
	log.WithField("file", fileName).WithField("samples", len(results)).Info("exporting workbook")
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	c.Response().WriteHeader(http.StatusOK)
	return f.Write(c.Response().Writer)
}

func (s *Server) newEvaluator(api PlatformAPI) *evaluator.Evaluator {
	ev := evaluator.New(api, s.opts.Oracle, s.opts.Assembler)
	ev.Rubric = s.opts.Rubric
	ev.Delay = s.opts.ScoreDelay
	return ev
}

func windowFromPayload(from, to string) (evaluator.Window, error) {
	if from == "" || to == "" {
		return nil, fmt.Errorf("from and to must be given together")
	}
	w, err := paginate.NewWindow(from, to, time.Local)
	if err != nil {
		return nil, err
	}
	return w, nil
}
