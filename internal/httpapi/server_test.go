package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/travel-concierge/internal/intent"
	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/internal/persistence"
	"github.com/MimeLyc/travel-concierge/internal/service"
)

type fakeConcierge struct {
	threadIDs []string
	turnErr   error
	history   map[string][]llm.Message
}

func (f *fakeConcierge) Turn(_ context.Context, threadID, input string) (*service.Reply, error) {
	f.threadIDs = append(f.threadIDs, threadID)
	if strings.TrimSpace(input) == "" {
		return nil, service.NewError(service.ErrMissingInput, "Please type a question.")
	}
	if f.turnErr != nil {
		return nil, f.turnErr
	}
	return &service.Reply{ThreadID: threadID, Agent: service.LabelWeather, Intent: intent.Weather, Answer: "Sunny in " + input}, nil
}

func (f *fakeConcierge) History(_ context.Context, threadID string) ([]llm.Message, error) {
	return f.history[threadID], nil
}

func (f *fakeConcierge) Threads(context.Context) ([]persistence.Thread, error) {
	return []persistence.Thread{{ID: "t1", MessageCount: 2, UpdatedAt: time.Unix(0, 0).UTC()}}, nil
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Chat(t *testing.T) {
	fake := &fakeConcierge{}
	srv := NewServer(fake)

	rec := postChat(t, srv.Handler(), `{"thread_id":"t1","message":"Tokyo"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var reply service.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.Equal(t, "t1", reply.ThreadID)
	require.Equal(t, "Weather Agent", reply.Agent)
	require.Equal(t, intent.Weather, reply.Intent)
	require.Equal(t, "Sunny in Tokyo", reply.Answer)
}

func TestServer_ChatAssignsThreadID(t *testing.T) {
	fake := &fakeConcierge{}
	srv := NewServer(fake)

	rec := postChat(t, srv.Handler(), `{"message":"Tokyo"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fake.threadIDs, 1)
	assert.Len(t, fake.threadIDs[0], 26) // ULID

	srv = NewServer(fake, WithThreadIDs(func() string { return "fixed" }))
	rec = postChat(t, srv.Handler(), `{"thread_id":"  ","message":"Tokyo"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fixed", fake.threadIDs[1])
}

func TestServer_ChatErrors(t *testing.T) {
	fake := &fakeConcierge{}
	srv := NewServer(fake)

	rec := postChat(t, srv.Handler(), `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postChat(t, srv.Handler(), `{"message":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"Please type a question."}`, rec.Body.String())

	fake.turnErr = service.WrapError(errors.New("503"), service.ErrUpstream, "the weather agent could not answer")
	rec = postChat(t, srv.Handler(), `{"message":"Tokyo"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "the weather agent could not answer")

	fake.turnErr = service.NewError(service.ErrCheckpoint, "could not save the conversation")
	rec = postChat(t, srv.Handler(), `{"message":"Tokyo"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_ThreadMessages(t *testing.T) {
	fake := &fakeConcierge{history: map[string][]llm.Message{
		"t1": {
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "hello"},
		},
	}}
	srv := NewServer(fake)

	req := httptest.NewRequest(http.MethodGet, "/api/threads/t1/messages", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp threadMessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "t1", resp.ThreadID)
	require.Len(t, resp.Messages, 2)

	req = httptest.NewRequest(http.MethodGet, "/api/threads/unknown/messages", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"thread_id":"unknown","messages":[]}`, rec.Body.String())
}

func TestServer_Threads(t *testing.T) {
	srv := NewServer(&fakeConcierge{})

	req := httptest.NewRequest(http.MethodGet, "/api/threads", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var threads []persistence.Thread
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &threads))
	require.Len(t, threads, 1)
	require.Equal(t, 2, threads[0].MessageCount)
}

func TestServer_CitiesAndHealth(t *testing.T) {
	srv := NewServer(&fakeConcierge{})

	req := httptest.NewRequest(http.MethodGet, "/api/cities", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp citiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Cities)
	found := false
	for _, c := range resp.Cities {
		if c.Name == "Tokyo" {
			found = true
			require.Equal(t, "Asia", c.Continent)
		}
	}
	require.True(t, found)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := RateLimit(ctx, RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})(NewServer(&fakeConcierge{}).Handler())

	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1000"))
}
