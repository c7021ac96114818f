package types

import "chat-quality-go/internal/rubric"

// EvaluationResult is one scored dialog inside a batch. Either Scorecard
// or Error is set; errored rows stay in the listing so the supervisor can
// see why a sample failed, but they are excluded from averages.
type EvaluationResult struct {
	DialogID     int64             `json:"dialog_id"`
	ChatID       int64             `json:"chat_id"`
	CustomerName string            `json:"customer_name"`
	Transcript   string            `json:"transcript,omitempty"`
	Messages     []Message         `json:"messages,omitempty"`
	Scorecard    *rubric.Scorecard `json:"scorecard,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Scored reports whether the dialog produced a usable scorecard.
func (r EvaluationResult) Scored() bool {
	return r.Error == "" && r.Scorecard != nil
}
