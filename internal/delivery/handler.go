// Package delivery serves requests arriving on the real-time endpoint:
// it authenticates the caller and returns that caller's unseen messages.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"mixchat/internal/apperr"
	"mixchat/internal/gateway/metrics"
	"mixchat/internal/storage"
)

// ActionSearchNew fetches the caller's unseen messages.
const ActionSearchNew = "search_new"

// Pusher writes one result back to the originating connection.
type Pusher func(OutboundResult) error

// ActionFunc serves one recognized action. The returned follow-up, if any,
// runs after the result has been pushed; pushed reports whether the push
// succeeded. The follow-up owns any resources the action left open.
type ActionFunc func(ctx context.Context, f Fields) (res OutboundResult, after func(ctx context.Context, pushed bool))

// Options configures a Handler.
type Options struct {
	// ConnectTimeout bounds acquiring a datastore session.
	ConnectTimeout time.Duration
	// PageSize caps messages per response; 0 means unbounded.
	PageSize int
	// AtomicClaim marks messages seen in the same statement that selects them.
	AtomicClaim bool
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// Handler dispatches frames to typed actions.
type Handler struct {
	store   Store
	opts    Options
	log     zerolog.Logger
	actions map[string]ActionFunc
}

// NewHandler creates a Handler with the search_new action registered.
func NewHandler(store Store, opts Options) *Handler {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	h := &Handler{
		store: store,
		opts:  opts,
		log:   opts.Logger,
	}
	h.actions = map[string]ActionFunc{
		ActionSearchNew: h.searchNew,
	}
	return h
}

// Actions returns the names of the recognized actions.
func (h *Handler) Actions() []string {
	names := make([]string, 0, len(h.actions))
	for name := range h.actions {
		names = append(names, name)
	}
	return names
}

// Handle serves one frame and calls push exactly once.
func (h *Handler) Handle(ctx context.Context, frame []byte, push Pusher) {
	start := time.Now()
	action := ""
	pushed := false

	respond := func(res OutboundResult) error {
		pushed = true
		h.opts.Metrics.ObserveFrame(action, res.Code(), time.Since(start))
		err := push(res)
		if err != nil {
			h.log.Debug().Err(err).Str("action", action).Msg("Push failed, client gone")
		}
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			h.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("action", action).
				Msg("panic while handling frame")
			if !pushed {
				_ = respond(failure(action, apperr.New(apperr.KindInternal, "internal error")))
			}
		}
	}()

	fields, name, perr := parseFrame(frame)
	if perr != nil {
		_ = respond(failure("", perr))
		return
	}

	fn, ok := h.actions[name]
	if !ok {
		_ = respond(failure("", apperr.New(apperr.KindUnknownAction, "")))
		return
	}
	action = name

	res, after := fn(ctx, fields)
	err := respond(res)
	if after != nil {
		after(ctx, err == nil)
	}
}

func (h *Handler) searchNew(ctx context.Context, f Fields) (OutboundResult, func(context.Context, bool)) {
	req, verr := decodeSearchNew(f)
	if verr != nil {
		return failure(ActionSearchNew, verr), nil
	}

	log := h.log.With().Int64("user_id", req.UserID).Str("convo_key", req.ConvoKey).Logger()

	sess, err := h.store.Acquire(ctx, h.opts.ConnectTimeout)
	if err != nil {
		log.Warn().Err(err).Msg("Datastore connection failed")
		return failure(ActionSearchNew, apperr.Wrap(apperr.KindDBConnectFailed, err, "").WithDetail(err.Error())), nil
	}
	release := func() {
		if err := sess.Close(); err != nil {
			log.Debug().Err(err).Msg("Release datastore session")
		}
	}

	if _, err := sess.Authenticate(ctx, req.UserID, req.Key); err != nil {
		release()
		if errors.Is(err, storage.ErrNotFound) {
			log.Debug().Msg("Authentication failed")
			return failure(ActionSearchNew, apperr.New(apperr.KindAuthFailed, "")), nil
		}
		log.Error().Err(err).Msg("Credential lookup failed")
		return failure(ActionSearchNew, apperr.Wrap(apperr.KindDBQueryFailed, err, "authenticate")), nil
	}

	filter := storage.UnseenFilter{
		RecipientID: req.UserID,
		ConvoKey:    req.ConvoKey,
		Limit:       h.opts.PageSize,
	}

	if req.MarkRead && h.opts.AtomicClaim {
		msgs, err := sess.ClaimUnseen(ctx, filter)
		release()
		if err != nil {
			log.Error().Err(err).Msg("Claim unseen messages failed")
			return failure(ActionSearchNew, apperr.Wrap(apperr.KindDBQueryFailed, err, "claim unseen")), nil
		}
		h.opts.Metrics.Delivered(len(msgs))
		h.opts.Metrics.MarkedSeen(int64(len(msgs)))
		log.Debug().Int("count", len(msgs)).Msg("Claimed unseen messages")
		return success(ActionSearchNew, msgs, h.pageFull(msgs)), nil
	}

	msgs, err := sess.UnseenMessages(ctx, filter)
	if err != nil {
		release()
		log.Error().Err(err).Msg("Fetch unseen messages failed")
		return failure(ActionSearchNew, apperr.Wrap(apperr.KindDBQueryFailed, err, "fetch unseen")), nil
	}
	h.opts.Metrics.Delivered(len(msgs))
	log.Debug().Int("count", len(msgs)).Msg("Fetched unseen messages")

	if !req.MarkRead || len(msgs) == 0 {
		release()
		return success(ActionSearchNew, msgs, h.pageFull(msgs)), nil
	}

	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	after := func(ctx context.Context, pushed bool) {
		defer release()
		if !pushed {
			// leave them unseen so the next fetch delivers them again
			return
		}
		n, err := sess.MarkSeen(ctx, ids)
		if err != nil {
			log.Warn().Err(err).Int("ids", len(ids)).Msg("Mark seen failed")
			return
		}
		h.opts.Metrics.MarkedSeen(n)
	}
	return success(ActionSearchNew, msgs, h.pageFull(msgs)), after
}

func (h *Handler) pageFull(msgs []*storage.Message) bool {
	return h.opts.PageSize > 0 && len(msgs) == h.opts.PageSize
}

// String describes the handler configuration for startup logs.
func (h *Handler) String() string {
	return fmt.Sprintf("delivery(page_size=%d atomic_claim=%t connect_timeout=%s)",
		h.opts.PageSize, h.opts.AtomicClaim, h.opts.ConnectTimeout)
}
