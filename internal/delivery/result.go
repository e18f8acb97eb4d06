package delivery

import (
	"encoding/json"

	"mixchat/internal/apperr"
	"mixchat/internal/storage"
)

// OutboundResult is the single response pushed for one inbound frame.
type OutboundResult struct {
	Action   string
	OK       bool
	Count    int
	Messages []*storage.Message
	HasMore  bool
	Err      *apperr.Error
}

// Code returns the result code used for metrics and logs.
func (r OutboundResult) Code() string {
	if r.Err != nil {
		return string(r.Err.Kind)
	}
	return "ok"
}

func success(action string, msgs []*storage.Message, hasMore bool) OutboundResult {
	if msgs == nil {
		msgs = []*storage.Message{}
	}
	return OutboundResult{Action: action, OK: true, Count: len(msgs), Messages: msgs, HasMore: hasMore}
}

func failure(action string, err *apperr.Error) OutboundResult {
	return OutboundResult{Action: action, Err: err}
}

type envelopeError struct {
	Error apperr.Kind `json:"error"`
	Msg   string      `json:"msg,omitempty"`
}

type actionError struct {
	Action string      `json:"action"`
	OK     bool        `json:"ok"`
	Error  apperr.Kind `json:"error"`
	Detail string      `json:"detail,omitempty"`
}

type actionSuccess struct {
	Action   string             `json:"action"`
	OK       bool               `json:"ok"`
	Count    int                `json:"count"`
	Messages []*storage.Message `json:"messages"`
	HasMore  bool               `json:"has_more,omitempty"`
}

// MarshalJSON renders the three wire shapes: frame-level errors carry only
// "error", action errors carry action/ok/error, successes carry the messages.
func (r OutboundResult) MarshalJSON() ([]byte, error) {
	switch {
	case r.Err != nil && r.Action == "":
		msg := ""
		if r.Err.Kind == apperr.KindInvalidPayload {
			msg = r.Err.Message
		}
		return json.Marshal(envelopeError{Error: r.Err.Kind, Msg: msg})
	case r.Err != nil:
		return json.Marshal(actionError{Action: r.Action, Error: r.Err.Kind, Detail: r.Err.Detail})
	default:
		msgs := r.Messages
		if msgs == nil {
			msgs = []*storage.Message{}
		}
		return json.Marshal(actionSuccess{Action: r.Action, OK: true, Count: r.Count, Messages: msgs, HasMore: r.HasMore})
	}
}

// Rejected builds the result for a frame refused before it reached an action.
func Rejected(err *apperr.Error) OutboundResult {
	return failure("", err)
}
