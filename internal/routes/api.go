package routes

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mixchat/internal/gateway/handlers"
	"mixchat/internal/i18n"
	"mixchat/internal/mail"
	"mixchat/internal/storage"
)

// API serves the implemented controller actions.
type API struct {
	db      *storage.DB
	dict    *i18n.Store
	mail    mail.Sender
	version string
	log     zerolog.Logger
	now     func() time.Time
}

// NewAPI creates the action handlers. sender may be a mail.NopSender.
func NewAPI(db *storage.DB, dict *i18n.Store, sender mail.Sender, version string, log zerolog.Logger) *API {
	return &API{
		db:      db,
		dict:    dict,
		mail:    sender,
		version: version,
		log:     log,
		now:     time.Now,
	}
}

// Handlers returns the implemented actions keyed by route name.
func (a *API) Handlers() Handlers {
	return Handlers{
		"Main@main":             a.main,
		"Messages@send":         a.send,
		"Messages@read":         a.read,
		"Notifications@addTest": a.testNotification,
	}
}

type credentials struct {
	UserID int64  `json:"user_id"`
	Key    string `json:"key"`
}

// authenticate writes a 401 and returns nil when the credentials do not match.
// Wrong id and wrong key produce the same response.
func (a *API) authenticate(ctx context.Context, w http.ResponseWriter, c credentials) *storage.User {
	key := strings.TrimSpace(c.Key)
	if c.UserID <= 0 || key == "" {
		handlers.SendError(w, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "user_id and key are required")
		return nil
	}
	u, err := a.db.Authenticate(ctx, c.UserID, key)
	if errors.Is(err, storage.ErrNotFound) {
		handlers.SendError(w, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "authentication failed")
		return nil
	}
	if err != nil {
		a.log.Error().Err(err).Int64("user_id", c.UserID).Msg("Credential lookup failed")
		handlers.SendError(w, http.StatusServiceUnavailable, handlers.ErrCodeServiceUnavailable, "datastore unavailable")
		return nil
	}
	return u
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	handlers.SendError(w, http.StatusMethodNotAllowed, handlers.ErrCodeInvalidRequest, "method "+r.Method+" not allowed")
	return false
}

// MainResponse is the service banner.
type MainResponse struct {
	Service    string `json:"service"`
	Version    string `json:"version"`
	ServerTime int64  `json:"server_time"`
	Date       string `json:"date"`
	Weekday    string `json:"weekday"`
}

func (a *API) main(w http.ResponseWriter, r *http.Request) {
	now := a.now()
	dict := a.dict.Get()
	handlers.SendJSON(w, http.StatusOK, MainResponse{
		Service:    "mixchat",
		Version:    a.version,
		ServerTime: now.Unix(),
		Date:       dict.FormatDate(now),
		Weekday:    dict.Weekday(now),
	})
}

type sendRequest struct {
	credentials
	RecipientID int64  `json:"recipient_id"`
	ConvoKey    string `json:"convo_key"`
	Payload     string `json:"payload"`
}

// SendResponse reports the stored message.
type SendResponse struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *API) send(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req sendRequest
	if !handlers.DecodeJSON(w, r, &req) {
		return
	}
	sender := a.authenticate(r.Context(), w, req.credentials)
	if sender == nil {
		return
	}
	if req.RecipientID <= 0 || req.Payload == "" {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "recipient_id and payload are required")
		return
	}
	if _, err := a.db.GetUser(r.Context(), req.RecipientID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			handlers.SendError(w, http.StatusNotFound, handlers.ErrCodeNotFound, "recipient not found")
			return
		}
		a.log.Error().Err(err).Msg("Recipient lookup failed")
		handlers.SendError(w, http.StatusServiceUnavailable, handlers.ErrCodeServiceUnavailable, "datastore unavailable")
		return
	}

	convo := strings.TrimSpace(req.ConvoKey)
	m, err := a.db.AppendMessage(r.Context(), &storage.Message{
		SenderID:    sender.ID,
		RecipientID: req.RecipientID,
		ConvoKey:    &convo,
		Payload:     req.Payload,
		CreatedAt:   a.now(),
	})
	if err != nil {
		a.log.Error().Err(err).Int64("user_id", sender.ID).Msg("Store message failed")
		handlers.SendError(w, http.StatusServiceUnavailable, handlers.ErrCodeServiceUnavailable, "datastore unavailable")
		return
	}

	a.log.Debug().Int64("id", m.ID).Int64("user_id", sender.ID).Int64("recipient_id", m.RecipientID).Msg("Message stored")
	handlers.SendJSON(w, http.StatusCreated, SendResponse{ID: m.ID, CreatedAt: m.CreatedAt})
}

type readRequest struct {
	credentials
	IDs []int64 `json:"ids"`
}

// ReadResponse reports how many messages changed to seen.
type ReadResponse struct {
	Marked int64 `json:"marked"`
}

func (a *API) read(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req readRequest
	if !handlers.DecodeJSON(w, r, &req) {
		return
	}
	user := a.authenticate(r.Context(), w, req.credentials)
	if user == nil {
		return
	}

	n, err := a.db.MarkSeenFor(r.Context(), user.ID, req.IDs)
	if err != nil {
		a.log.Error().Err(err).Int64("user_id", user.ID).Msg("Mark seen failed")
		handlers.SendError(w, http.StatusServiceUnavailable, handlers.ErrCodeServiceUnavailable, "datastore unavailable")
		return
	}
	handlers.SendJSON(w, http.StatusOK, ReadResponse{Marked: n})
}

// testNotification mails the caller a test notification.
func (a *API) testNotification(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req credentials
	if !handlers.DecodeJSON(w, r, &req) {
		return
	}
	if a.authenticate(r.Context(), w, req) == nil {
		return
	}

	u, err := a.db.GetUser(r.Context(), req.UserID)
	if err != nil {
		a.log.Error().Err(err).Int64("user_id", req.UserID).Msg("User lookup failed")
		handlers.SendError(w, http.StatusServiceUnavailable, handlers.ErrCodeServiceUnavailable, "datastore unavailable")
		return
	}
	if u.Email == "" {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "user has no email address")
		return
	}

	dict := a.dict.Get()
	body := "<p>Тестовое уведомление mixchat</p><p>" + dict.FormatDate(a.now()) + "</p>"
	if err := a.mail.Send(r.Context(), u.Email, "Тестовое уведомление", body); err != nil {
		a.log.Warn().Err(err).Int64("user_id", u.ID).Msg("Test notification not sent")
		handlers.SendError(w, http.StatusServiceUnavailable, handlers.ErrCodeServiceUnavailable, "mail unavailable")
		return
	}
	handlers.SendJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}
