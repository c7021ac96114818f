package evaluator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"go.uber.org/goleak"

	"chat-quality-go/internal/rubric"
	"chat-quality-go/internal/transcript"
	"chat-quality-go/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAPI struct {
	messages map[int64][]types.Message
	err      map[int64]error
	calls    []int64
}

func (f *fakeAPI) GetMessagesByDialog(_ context.Context, dialogID int64, _ int) ([]types.Message, error) {
	f.calls = append(f.calls, dialogID)
	if err := f.err[dialogID]; err != nil {
		return nil, err
	}
	return f.messages[dialogID], nil
}

type fakeOracle struct {
	failOn map[string]error
	calls  int
}

func (f *fakeOracle) Score(_ context.Context, rb *rubric.Rubric, transcript string) (rubric.Scorecard, error) {
	f.calls++
	for needle, err := range f.failOn {
		if strings.Contains(transcript, needle) {
			return rubric.Scorecard{}, err
		}
	}
	sc := rubric.Scorecard{RubricVersion: rb.Version}
	for _, s := range rb.Sections {
		ss := rubric.SectionScore{Key: s.Key, Max: s.Max}
		for _, c := range s.Criteria {
			ss.Criteria = append(ss.Criteria, rubric.CriterionScore{Key: c.Key, Points: c.Max, Max: c.Max})
		}
		sc.Sections = append(sc.Sections, ss)
	}
	sc.Recompute()
	return sc, nil
}

func newTestEvaluator(api *fakeAPI, oracle *fakeOracle) *Evaluator {
	e := New(api, oracle, transcript.Assembler{})
	e.Delay = -1 // no pacing in tests
	e.Rand = rand.New(rand.NewSource(1))
	return e
}

func chatWithDialog(chatID, dialogID, managerID int64, closedAt time.Time) types.Chat {
	d := &types.Dialog{ID: dialogID, ChatID: chatID}
	if managerID != 0 {
		d.Responsible = &types.Responsible{ID: managerID, Type: "user", Name: "Laura Díaz"}
	}
	if !closedAt.IsZero() {
		d.ClosedAt = null.TimeFrom(closedAt)
	}
	return types.Chat{
		ID:         chatID,
		CreatedAt:  closedAt,
		Customer:   &types.Customer{ID: chatID, Name: fmt.Sprintf("Cliente %d", chatID)},
		LastDialog: d,
	}
}

func oneMessage(dialogID int64) []types.Message {
	return []types.Message{{
		ID:        dialogID * 10,
		From:      &types.From{Type: "customer"},
		Content:   null.StringFrom(fmt.Sprintf("hola, dialogo %d", dialogID)),
		CreatedAt: time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
	}}
}

type fullWindow struct{}

func (fullWindow) IsZero() bool            { return true }
func (fullWindow) Contains(time.Time) bool { return true }

func TestRunSamplesOnlyClosedDialogs(t *testing.T) {
	closed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	api := &fakeAPI{messages: map[int64][]types.Message{}}

	var chats []types.Chat
	for i := int64(1); i <= 12; i++ {
		chats = append(chats, chatWithDialog(i, 100+i, 7, closed))
		api.messages[100+i] = oneMessage(100 + i)
	}
	for i := int64(13); i <= 15; i++ {
		chats = append(chats, chatWithDialog(i, 100+i, 7, time.Time{})) // still open
		api.messages[100+i] = oneMessage(100 + i)
	}

	e := newTestEvaluator(api, &fakeOracle{})
	results, err := e.Run(context.Background(), chats, Request{
		ManagerID:  7,
		ClosedOnly: true,
		SampleSize: 5,
		Window:     fullWindow{},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("got %d results want 5", len(results))
	}
	seen := map[int64]bool{}
	for _, r := range results {
		if r.DialogID < 101 || r.DialogID > 112 {
			t.Fatalf("sampled dialog %d outside the closed set", r.DialogID)
		}
		if seen[r.DialogID] {
			t.Fatalf("dialog %d sampled twice", r.DialogID)
		}
		seen[r.DialogID] = true
		if !r.Scored() {
			t.Fatalf("dialog %d not scored: %s", r.DialogID, r.Error)
		}
	}
}

func TestRunFailsOnEmptyCandidateSet(t *testing.T) {
	chats := []types.Chat{chatWithDialog(1, 101, 7, time.Time{})} // open

	e := newTestEvaluator(&fakeAPI{}, &fakeOracle{})
	_, err := e.Run(context.Background(), chats, Request{ManagerID: 7, ClosedOnly: true, SampleSize: 3}, nil)
	if err == nil || !strings.Contains(err.Error(), "no eligible dialogs") {
		t.Fatalf("expected no-eligible-dialogs error, got %v", err)
	}
}

func TestRunExcludesBotResponsibles(t *testing.T) {
	closed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	chat := chatWithDialog(1, 101, 7, closed)
	chat.LastDialog.Responsible.Type = "bot"

	e := newTestEvaluator(&fakeAPI{}, &fakeOracle{})
	_, err := e.Run(context.Background(), []types.Chat{chat}, Request{ManagerID: 7, ClosedOnly: true}, nil)
	if err == nil {
		t.Fatalf("bot-attributed dialogs must not be eligible")
	}
}

func TestRunRecordsEmptyDialogAsError(t *testing.T) {
	closed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	chats := []types.Chat{
		chatWithDialog(1, 101, 7, closed),
		chatWithDialog(2, 102, 7, closed),
	}
	api := &fakeAPI{messages: map[int64][]types.Message{
		101: oneMessage(101),
		102: nil, // empty dialog
	}}

	e := newTestEvaluator(api, &fakeOracle{})
	results, err := e.Run(context.Background(), chats, Request{ManagerID: 7, ClosedOnly: true, SampleSize: 2}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results want 2", len(results))
	}

	byID := map[int64]types.EvaluationResult{}
	for _, r := range results {
		byID[r.DialogID] = r
	}
	if !byID[101].Scored() {
		t.Fatalf("dialog 101 should have scored: %s", byID[101].Error)
	}
	if byID[102].Error != "dialog has no messages" {
		t.Fatalf("dialog 102 error got %q", byID[102].Error)
	}
}

func TestRunCapturesOracleFailurePerDialog(t *testing.T) {
	closed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	chats := []types.Chat{
		chatWithDialog(1, 101, 7, closed),
		chatWithDialog(2, 102, 7, closed),
	}
	api := &fakeAPI{messages: map[int64][]types.Message{
		101: oneMessage(101),
		102: oneMessage(102),
	}}
	oracle := &fakeOracle{failOn: map[string]error{"dialogo 101": fmt.Errorf("oracle scoring failed: status 500")}}

	e := newTestEvaluator(api, oracle)
	results, err := e.Run(context.Background(), chats, Request{ManagerID: 7, ClosedOnly: true, SampleSize: 2}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	byID := map[int64]types.EvaluationResult{}
	for _, r := range results {
		byID[r.DialogID] = r
	}
	if !strings.Contains(byID[101].Error, "oracle scoring failed") {
		t.Fatalf("dialog 101 error got %q", byID[101].Error)
	}
	if !byID[102].Scored() {
		t.Fatalf("failure on 101 must not stop 102: %s", byID[102].Error)
	}
}

func TestRunExplicitDialogList(t *testing.T) {
	api := &fakeAPI{messages: map[int64][]types.Message{
		201: oneMessage(201),
		202: oneMessage(202),
	}}

	e := newTestEvaluator(api, &fakeOracle{})
	results, err := e.Run(context.Background(), nil, Request{DialogIDs: []int64{201, 202}}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 || results[0].DialogID != 201 || results[1].DialogID != 202 {
		t.Fatalf("explicit list order lost: %+v", results)
	}
}

func TestRunSingleDialogCarriesChatContext(t *testing.T) {
	closed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	chats := []types.Chat{chatWithDialog(4, 104, 7, closed)}
	api := &fakeAPI{messages: map[int64][]types.Message{104: oneMessage(104)}}

	e := newTestEvaluator(api, &fakeOracle{})
	results, err := e.Run(context.Background(), chats, Request{SingleDialogID: 104}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results want 1", len(results))
	}
	if results[0].ChatID != 4 || results[0].CustomerName != "Cliente 4" {
		t.Fatalf("chat context not resolved: %+v", results[0])
	}
}

func TestRunReportsProgress(t *testing.T) {
	closed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	chats := []types.Chat{
		chatWithDialog(1, 101, 7, closed),
		chatWithDialog(2, 102, 7, closed),
		chatWithDialog(3, 103, 7, closed),
	}
	api := &fakeAPI{messages: map[int64][]types.Message{
		101: oneMessage(101), 102: oneMessage(102), 103: oneMessage(103),
	}}

	var ticks []int
	e := newTestEvaluator(api, &fakeOracle{})
	_, err := e.Run(context.Background(), chats, Request{ManagerID: 7, ClosedOnly: true, SampleSize: 3},
		func(done, total int) {
			if total != 3 {
				t.Errorf("total got %d want 3", total)
			}
			ticks = append(ticks, done)
		})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ticks) != 3 || ticks[0] != 1 || ticks[2] != 3 {
		t.Fatalf("progress ticks got %v", ticks)
	}
}

func TestRunHonorsCancellationBetweenDialogs(t *testing.T) {
	closed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	chats := []types.Chat{
		chatWithDialog(1, 101, 7, closed),
		chatWithDialog(2, 102, 7, closed),
	}
	api := &fakeAPI{messages: map[int64][]types.Message{
		101: oneMessage(101), 102: oneMessage(102),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	e := newTestEvaluator(api, &fakeOracle{})
	e.Delay = time.Hour // the pause between dialog 1 and 2 must notice cancel

	done := make(chan error, 1)
	go func() {
		_, err := e.Run(ctx, chats, Request{ManagerID: 7, ClosedOnly: true, SampleSize: 2}, nil)
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("got %v want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop on cancellation")
	}
}

func TestRescoreReplacesWithFreshDialog(t *testing.T) {
	closed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	api := &fakeAPI{messages: map[int64][]types.Message{}}
	var chats []types.Chat
	for i := int64(1); i <= 4; i++ {
		chats = append(chats, chatWithDialog(i, 100+i, 7, closed))
		api.messages[100+i] = oneMessage(100 + i)
	}

	e := newTestEvaluator(api, &fakeOracle{})
	req := Request{ManagerID: 7, ClosedOnly: true, SampleSize: 3}

	results, err := e.Run(context.Background(), chats, req, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	inSample := map[int64]bool{}
	for _, r := range results {
		inSample[r.DialogID] = true
	}

	updated, err := e.Rescore(context.Background(), chats, results, 1, req)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if len(updated) != 3 {
		t.Fatalf("got %d results want 3", len(updated))
	}
	if inSample[updated[1].DialogID] {
		t.Fatalf("replacement %d was already in the sample", updated[1].DialogID)
	}
	if updated[0].DialogID != results[0].DialogID || updated[2].DialogID != results[2].DialogID {
		t.Fatalf("rescore must not move sibling rows")
	}
	if results[1].DialogID == updated[1].DialogID {
		t.Fatalf("row 1 was not replaced")
	}
}

func TestRescoreFailsWhenPoolExhausted(t *testing.T) {
	closed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	api := &fakeAPI{messages: map[int64][]types.Message{101: oneMessage(101)}}
	chats := []types.Chat{chatWithDialog(1, 101, 7, closed)}

	e := newTestEvaluator(api, &fakeOracle{})
	req := Request{ManagerID: 7, ClosedOnly: true, SampleSize: 1}
	results, err := e.Run(context.Background(), chats, req, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := e.Rescore(context.Background(), chats, results, 0, req); err == nil {
		t.Fatalf("expected exhausted-pool error")
	}
}
