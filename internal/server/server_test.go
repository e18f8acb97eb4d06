package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixchat/internal/config"
	"mixchat/internal/mail"
	"mixchat/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Gateway.Host = "127.0.0.1"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "mixchat.db")
	return cfg
}

func startServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := New(cfg, Options{Version: "test", Logger: zerolog.Nop()})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, s.StartOn(ln))
	require.Eventually(t, s.Gateway().IsReady, time.Second, 5*time.Millisecond)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Realtime.MaxInflight = 0
	_, err := New(cfg, Options{Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestNew_UnknownLanguage(t *testing.T) {
	cfg := testConfig(t)
	cfg.I18n.Lang = "xx"
	_, err := New(cfg, Options{Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestNew_OverrideFile(t *testing.T) {
	cfg := testConfig(t)
	file := filepath.Join(t.TempDir(), "ru.yaml")
	require.NoError(t, os.WriteFile(file, []byte("January: Январь\n"), 0644))
	cfg.I18n.OverrideFile = file

	s, err := New(cfg, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer s.Stop()

	assert.Equal(t, "Январь", s.Dictionary().Get().T("January"))
	assert.Equal(t, "февраля", s.Dictionary().Get().T("February"))
}

func TestNew_MissingOverrideWithoutWatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.I18n.OverrideFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(cfg, Options{Logger: zerolog.Nop()})
	assert.Error(t, err)

	cfg.I18n.Watch = true
	s, err := New(cfg, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.NoError(t, s.Stop())
}

func TestNewMailSender(t *testing.T) {
	sender, err := NewMailSender(config.MailConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, mail.NopSender{}, sender)

	sender, err = NewMailSender(config.MailConfig{Enabled: true, Host: "smtp.example.com", Port: 587}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &mail.SMTPSender{}, sender)
}

func TestServer_SendThenDeliver(t *testing.T) {
	cfg := testConfig(t)
	s := startServer(t, cfg)
	ctx := context.Background()

	_, err := s.DB().CreateUser(ctx, &storage.User{ID: 42, APIKey: "abc123"})
	require.NoError(t, err)
	_, err = s.DB().CreateUser(ctx, &storage.User{ID: 7, APIKey: "k7"})
	require.NoError(t, err)

	base := "http://" + s.Gateway().Addr().String()
	for _, payload := range []string{"first", "second"} {
		body, _ := json.Marshal(map[string]any{
			"user_id": 7, "key": "k7", "recipient_id": 42, "convo_key": "room1", "payload": payload,
		})
		resp, err := http.Post(base+"/api/messages/send", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		// distinct created_at so order is by time, not id
		time.Sleep(2 * time.Millisecond)
	}

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+s.Gateway().Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()

	frame := map[string]any{"action": "search_new", "user_id": 42, "key": "abc123", "convo_key": "room1", "mark_read": true}
	require.NoError(t, ws.WriteJSON(frame))

	var res struct {
		Action   string            `json:"action"`
		OK       bool              `json:"ok"`
		Count    int               `json:"count"`
		Messages []storage.Message `json:"messages"`
	}
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, ws.ReadJSON(&res))
	assert.True(t, res.OK)
	require.Equal(t, 2, res.Count)
	assert.Equal(t, "first", res.Messages[0].Payload)
	assert.Equal(t, "second", res.Messages[1].Payload)

	require.NoError(t, ws.WriteJSON(frame))
	require.NoError(t, ws.ReadJSON(&res))
	assert.Zero(t, res.Count)

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(1), health["connections"])
}

func TestServer_Run(t *testing.T) {
	cfg := testConfig(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg.Gateway.Port = ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	s, err := New(cfg, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, s.IsRunning, time.Second, 5*time.Millisecond)
	assert.False(t, s.StartedAt().IsZero())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
}
