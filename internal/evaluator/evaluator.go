// Package evaluator runs scoring batches: it picks eligible dialogs for
// a manager, samples them, and walks the sample strictly one dialog at a
// time through transcript assembly and the scoring oracle. Sequential on
// purpose: the oracle endpoint rate-limits aggressively and a paced loop
// with a fixed delay stays under it.
package evaluator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"chat-quality-go/internal/logger"
	"chat-quality-go/internal/rubric"
	"chat-quality-go/internal/transcript"
	"chat-quality-go/internal/types"
)

// DefaultMessageLimit bounds one dialog's message fetch.
const DefaultMessageLimit = 250

// DefaultDelay paces consecutive oracle calls.
const DefaultDelay = 500 * time.Millisecond

// MessagesFetcher is the slice of the platform client the evaluator needs.
type MessagesFetcher interface {
	GetMessagesByDialog(ctx context.Context, dialogID int64, limit int) ([]types.Message, error)
}

// Scorer grades one transcript against a rubric.
type Scorer interface {
	Score(ctx context.Context, rb *rubric.Rubric, transcript string) (rubric.Scorecard, error)
}

// Progress is invoked after each dialog completes, scored or failed.
type Progress func(done, total int)

// Request describes one batch. Exactly one mode applies, checked in
// order: SingleDialogID, DialogIDs, then manager sampling.
type Request struct {
	ManagerID   int64
	ManagerName string
	Window      Window
	ClosedOnly  bool
	SampleSize  int

	// DialogIDs scores an explicit list instead of sampling.
	DialogIDs []int64
	// SingleDialogID scores exactly one dialog.
	SingleDialogID int64
}

// Window is the minimal date-range check the evaluator needs; satisfied
// by paginate.Window.
type Window interface {
	IsZero() bool
	Contains(t time.Time) bool
}

// Evaluator wires the scoring loop's collaborators.
type Evaluator struct {
	API       MessagesFetcher
	Oracle    Scorer
	Assembler transcript.Assembler
	Rubric    *rubric.Rubric

	// Delay between consecutive dialogs; negative disables, zero takes
	// DefaultDelay.
	Delay time.Duration
	// Rand drives sampling; nil falls back to a time-seeded source.
	Rand *rand.Rand

	log *logger.Logger
}

// New builds an evaluator with the default rubric revision.
func New(api MessagesFetcher, oracle Scorer, asm transcript.Assembler) *Evaluator {
	return &Evaluator{
		API:       api,
		Oracle:    oracle,
		Assembler: asm,
		Rubric:    rubric.Default(),
		log:       logger.New().WithComponent("evaluator"),
	}
}

type candidate struct {
	dialogID     int64
	chatID       int64
	customerName string
}

// Run executes one batch over the session's chat set and returns one
// result per evaluated dialog, in evaluation order. A dialog that cannot
// be scored still yields a result, with its Error field set; only an
// empty candidate set or a cancelled context fail the run as a whole.
func (e *Evaluator) Run(ctx context.Context, chats []types.Chat, req Request, progress Progress) ([]types.EvaluationResult, error) {
	targets, err := e.targets(chats, req)
	if err != nil {
		return nil, err
	}
	return e.scoreAll(ctx, targets, req.ManagerName, progress)
}

// Rescore replaces results[idx] with a freshly scored dialog that is not
// already part of the result set, keeping the row position stable. It
// fails when no unscored candidate remains.
func (e *Evaluator) Rescore(ctx context.Context, chats []types.Chat, results []types.EvaluationResult, idx int, req Request) ([]types.EvaluationResult, error) {
	if idx < 0 || idx >= len(results) {
		return nil, fmt.Errorf("result index %d out of range", idx)
	}

	used := make(map[int64]struct{}, len(results))
	for _, r := range results {
		used[r.DialogID] = struct{}{}
	}

	pool := e.candidates(chats, req)
	var fresh []candidate
	for _, c := range pool {
		if _, taken := used[c.dialogID]; !taken {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return nil, fmt.Errorf("no replacement dialog available outside the current sample")
	}

	pick := fresh[e.rng().Intn(len(fresh))]
	replaced, err := e.scoreAll(ctx, []candidate{pick}, req.ManagerName, nil)
	if err != nil {
		return nil, err
	}

	out := make([]types.EvaluationResult, len(results))
	copy(out, results)
	out[idx] = replaced[0]
	return out, nil
}

// targets resolves the request mode into the concrete dialog list.
func (e *Evaluator) targets(chats []types.Chat, req Request) ([]candidate, error) {
	if req.SingleDialogID != 0 {
		return []candidate{e.lookup(chats, req.SingleDialogID)}, nil
	}
	if len(req.DialogIDs) > 0 {
		targets := make([]candidate, 0, len(req.DialogIDs))
		for _, id := range req.DialogIDs {
			targets = append(targets, e.lookup(chats, id))
		}
		return targets, nil
	}

	pool := e.candidates(chats, req)
	if len(pool) == 0 {
		return nil, fmt.Errorf("no eligible dialogs for the requested manager and window")
	}
	return e.sample(pool, req.SampleSize), nil
}

// candidates filters the chat set down to dialogs attributable to the
// requested manager. Closed-only mode keys eligibility on the dialog's
// closing date, not on last activity.
func (e *Evaluator) candidates(chats []types.Chat, req Request) []candidate {
	var out []candidate
	for _, chat := range chats {
		d := chat.LastDialog
		if d == nil || d.ID == 0 {
			continue
		}
		if req.ManagerID != 0 {
			if d.Responsible == nil || d.Responsible.ID != req.ManagerID || d.Responsible.IsBot() {
				continue
			}
		}
		if req.ClosedOnly {
			if !d.Closed() {
				continue
			}
			if req.Window != nil && !req.Window.IsZero() && !req.Window.Contains(d.ClosedAt.Time) {
				continue
			}
		} else if req.Window != nil && !req.Window.IsZero() && !req.Window.Contains(chat.ActivityAt()) {
			continue
		}
		out = append(out, candidate{dialogID: d.ID, chatID: chat.ID, customerName: chat.CustomerName()})
	}
	return out
}

// sample picks min(n, len(pool)) candidates uniformly without
// replacement.
func (e *Evaluator) sample(pool []candidate, n int) []candidate {
	if n <= 0 || n > len(pool) {
		n = len(pool)
	}
	shuffled := make([]candidate, len(pool))
	copy(shuffled, pool)
	e.rng().Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

// scoreAll is the sequential loop. Per-dialog failures land in the
// result's Error field; siblings keep going.
func (e *Evaluator) scoreAll(ctx context.Context, targets []candidate, agentName string, progress Progress) ([]types.EvaluationResult, error) {
	results := make([]types.EvaluationResult, 0, len(targets))
	for i, target := range targets {
		if i > 0 {
			if err := e.pause(ctx); err != nil {
				return nil, err
			}
		}
		results = append(results, e.scoreOne(ctx, target, agentName))
		if progress != nil {
			progress(i+1, len(targets))
		}
	}
	return results, nil
}

func (e *Evaluator) scoreOne(ctx context.Context, target candidate, agentName string) types.EvaluationResult {
	res := types.EvaluationResult{
		DialogID:     target.dialogID,
		ChatID:       target.chatID,
		CustomerName: target.customerName,
	}
	log := e.log.WithField("dialog_id", target.dialogID)

	messages, err := e.API.GetMessagesByDialog(ctx, target.dialogID, DefaultMessageLimit)
	if err != nil {
		log.WithError(err).Warn("message fetch failed")
		res.Error = fmt.Sprintf("fetch messages: %v", err)
		return res
	}
	if len(messages) == 0 {
		log.Warn("dialog has no messages")
		res.Error = "dialog has no messages"
		return res
	}
	res.Messages = messages

	res.Transcript = e.Assembler.Render(ctx, messages, agentName)

	card, err := e.Oracle.Score(ctx, e.Rubric, res.Transcript)
	if err != nil {
		log.WithError(err).Warn("scoring failed")
		res.Error = err.Error()
		return res
	}
	res.Scorecard = &card
	log.WithField("total", card.Total).Info("dialog scored")
	return res
}

// pause waits the inter-call delay, honoring cancellation.
func (e *Evaluator) pause(ctx context.Context) error {
	delay := e.Delay
	if delay == 0 {
		delay = DefaultDelay
	}
	if delay < 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Evaluator) rng() *rand.Rand {
	if e.Rand == nil {
		e.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e.Rand
}

// lookup finds the chat carrying a known dialog id; the explicit-id
// modes accept dialogs outside the cached chat set, so a miss still
// produces a target with customer details left blank.
func (e *Evaluator) lookup(chats []types.Chat, dialogID int64) candidate {
	for _, chat := range chats {
		if chat.LastDialog != nil && chat.LastDialog.ID == dialogID {
			return candidate{dialogID: dialogID, chatID: chat.ID, customerName: chat.CustomerName()}
		}
	}
	return candidate{dialogID: dialogID}
}
