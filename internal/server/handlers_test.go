package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cakestudio/internal/catalog"
	"cakestudio/internal/events"
	"cakestudio/internal/intent"
	"cakestudio/internal/session"
	"cakestudio/internal/vision"
)

// newTestServer runs the full router against a service whose AI clients are
// disabled, so every pipeline stage short-circuits deterministically.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	broker := events.NewBroker()
	svc := session.NewService(
		session.NewRegistry(time.Hour),
		catalog.Default(),
		intent.NewExtractor(nil),
		vision.NewDesigner(nil),
		vision.NewSynthesizer(nil, "dall-e-3", "dall-e-2"),
		broker,
		zap.NewNop(),
	)
	t.Cleanup(func() { _ = svc.Close() })

	srv := New("0", Handler{Sessions: svc, Events: broker, Logger: zap.NewNop()}, zap.NewNop())
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot session.Snapshot
	decodeBody(t, resp, &snapshot)
	require.NotEmpty(t, snapshot.ID)
	assert.Equal(t, session.PhaseForm, snapshot.Phase)
	return snapshot.ID
}

func submitIntake(t *testing.T, ts *httptest.Server, id string) session.Snapshot {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/intake", session.IntakeInput{
		Name:       "김민지",
		Phone:      "010-1234-5678",
		Size:       "1호",
		Filling:    "초코",
		PickupDate: "2025-12-24",
		PickupTime: "10:00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot session.Snapshot
	decodeBody(t, resp, &snapshot)
	return snapshot
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCatalogEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/catalog")
	require.NoError(t, err)

	var cat catalog.Catalog
	decodeBody(t, resp, &cat)
	assert.Equal(t, 25000, cat.Menu.Sizes["1호"])
	assert.Contains(t, cat.Schedule, "2025-12-24")
}

func TestIntakeFlow(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	// Missing phone is rejected with the user-facing message.
	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/intake", session.IntakeInput{
		Name: "김민지", Size: "1호", Filling: "초코",
		PickupDate: "2025-12-24", PickupTime: "10:00",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var rejection map[string]string
	decodeBody(t, resp, &rejection)
	assert.NotEmpty(t, rejection["message"])

	snapshot := submitIntake(t, ts, id)
	assert.Equal(t, session.PhaseChat, snapshot.Phase)
	assert.Equal(t, 48500, snapshot.Order.Price)
	require.Len(t, snapshot.Messages, 1)
}

func TestChatAcceptedWithPlaceholder(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	submitIntake(t, ts, id)

	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/chat", map[string]string{"message": "곰돌이 그려주세요"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var snapshot session.Snapshot
	decodeBody(t, resp, &snapshot)
	require.Len(t, snapshot.Messages, 3)
	assert.Equal(t, session.RoleUser, snapshot.Messages[1].Role)
	assert.True(t, snapshot.Processing)

	// A second turn while the first is pending conflicts.
	resp = postJSON(t, ts.URL+"/api/sessions/"+id+"/chat", map[string]string{"message": "하나 더"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestChatRequiresMessage(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	submitIntake(t, ts, id)

	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/chat", map[string]string{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestReferenceImageRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	base := submitIntake(t, ts, id)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/sessions/"+id+"/reference-image", bytes.NewReader([]byte{0xFF, 0xD8, 0xFF}))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "image/jpeg")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var attached session.Snapshot
	decodeBody(t, resp, &attached)
	assert.True(t, attached.Order.HasImage)
	assert.Equal(t, base.Order.Price+10000, attached.Order.Price)

	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+id+"/reference-image", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)

	var detached session.Snapshot
	decodeBody(t, resp, &detached)
	assert.False(t, detached.Order.HasImage)
	assert.Equal(t, base.Order.Price, detached.Order.Price)
}

func TestEmptyImageUploadRejected(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	submitIntake(t, ts, id)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/sessions/"+id+"/reference-image", bytes.NewReader(nil))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDesignImageMissingIs404(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	submitIntake(t, ts, id)

	resp, err := http.Get(ts.URL + "/api/sessions/" + id + "/design-image")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfirmReturnsQuote(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	submitIntake(t, ts, id)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/sessions/"+id+"/reference-image", bytes.NewReader([]byte{0xFF, 0xD8}))
	require.NoError(t, err)
	uploadResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	uploadResp.Body.Close()

	resp, err := http.Post(ts.URL+"/api/sessions/"+id+"/confirm", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var quote session.Quote
	decodeBody(t, resp, &quote)
	assert.Equal(t, 58500, quote.Total)
	require.Len(t, quote.Extras, 1)
	assert.Equal(t, 10000, quote.Extras[0].Amount)

	// Confirm again: terminal phase conflicts.
	resp, err = http.Post(ts.URL+"/api/sessions/"+id+"/confirm", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestResetReturnsFreshSession(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	submitIntake(t, ts, id)

	resp, err := http.Post(ts.URL+"/api/sessions/"+id+"/reset", "application/json", nil)
	require.NoError(t, err)

	var snapshot session.Snapshot
	decodeBody(t, resp, &snapshot)
	assert.Equal(t, id, snapshot.ID)
	assert.Equal(t, session.PhaseForm, snapshot.Phase)
	assert.Empty(t, snapshot.Messages)
}

func TestUnknownSessionIs404(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/sessions/nope/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "session not found")
}

func TestEventsStreamDeliversSessionUpdates(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	submitIntake(t, ts, id)

	resp, err := http.Get(ts.URL + "/api/sessions/" + id + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	done := make(chan string, 1)
	go func() {
		buf := make([]byte, 4096)
		n, _ := resp.Body.Read(buf)
		done <- string(buf[:n])
	}()

	// Trigger an event on the watched session.
	chatResp := postJSON(t, ts.URL+"/api/sessions/"+id+"/chat", map[string]string{"message": "안녕하세요"})
	chatResp.Body.Close()

	select {
	case frame := <-done:
		assert.Contains(t, frame, "data: ")
		assert.Contains(t, frame, fmt.Sprintf("%q", id))
	case <-time.After(2 * time.Second):
		t.Fatal("no SSE frame received")
	}
}
