package delivery

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"mixchat/internal/apperr"
)

// Fields is one decoded inbound frame. Numbers are kept as json.Number.
type Fields map[string]any

// InboundRequest is a validated search_new request.
type InboundRequest struct {
	Action   string
	UserID   int64
	Key      string
	ConvoKey string // empty means no conversation filter
	MarkRead bool
}

const invalidPayloadMsg = "Expected JSON with an action field"

// parseFrame decodes a frame into Fields and extracts the action name.
func parseFrame(frame []byte) (Fields, string, *apperr.Error) {
	dec := json.NewDecoder(bytes.NewReader(frame))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, "", apperr.Wrap(apperr.KindInvalidPayload, err, invalidPayloadMsg)
	}
	// the frame must hold exactly one JSON value
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, "", apperr.New(apperr.KindInvalidPayload, invalidPayloadMsg)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, "", apperr.New(apperr.KindInvalidPayload, invalidPayloadMsg)
	}
	fields := Fields(obj)

	value, present := fields["action"]
	if !present || !truthy(value) {
		return nil, "", apperr.New(apperr.KindInvalidPayload, invalidPayloadMsg)
	}
	action, _ := value.(string)
	// a truthy non-string action can never name a known operation
	return fields, action, nil
}

// Int coerces a field to an integer; anything non-numeric yields 0.
func (f Fields) Int(name string) int64 {
	switch v := f[name].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if fl, err := v.Float64(); err == nil {
			return int64(fl)
		}
	case string:
		return leadingInt(strings.TrimSpace(v))
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// String returns a trimmed scalar field as text; non-scalars yield "".
func (f Fields) String(name string) string {
	switch v := f[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "1"
		}
	}
	return ""
}

// Bool reports whether a field is present and truthy.
func (f Fields) Bool(name string) bool {
	v, ok := f[name]
	return ok && truthy(v)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "0"
	case json.Number:
		fl, err := t.Float64()
		return err != nil || fl != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// leadingInt parses the longest leading integer of s ("42abc" -> 42).
func leadingInt(s string) int64 {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	i, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return i
}

// decodeSearchNew validates the credential and filter fields.
func decodeSearchNew(f Fields) (*InboundRequest, *apperr.Error) {
	req := &InboundRequest{
		Action:   ActionSearchNew,
		UserID:   f.Int("user_id"),
		Key:      f.String("key"),
		ConvoKey: f.String("convo_key"),
		MarkRead: f.Bool("mark_read"),
	}
	if req.UserID <= 0 || req.Key == "" {
		return nil, apperr.New(apperr.KindMissingCredentials, "user_id and key are required")
	}
	return req, nil
}
