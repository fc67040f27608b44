package slack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/formbot/internal/formbot"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type recordingIntake struct {
	mu   sync.Mutex
	msgs []formbot.Message
}

func (r *recordingIntake) Handle(_ context.Context, msg formbot.Message) (formbot.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return formbot.Result{Outcome: formbot.OutcomeNoMatch}, nil
}

func (r *recordingIntake) Messages() []formbot.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]formbot.Message(nil), r.msgs...)
}

func signedRequest(t *testing.T, secret, body string) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte("v0:" + ts + ":" + body))

	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func callback(event string) string {
	return `{"token":"t","team_id":"T1","api_app_id":"A1","type":"event_callback","event_id":"Ev1","event_time":1,"event":` + event + `}`
}

func TestEventsHandler_URLVerification(t *testing.T) {
	h := NewEventsHandler(testSecret, &recordingIntake{})
	body := `{"token":"t","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P","type":"url_verification"}`

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, testSecret, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P", rec.Body.String())
}

func TestEventsHandler_RejectsBadSignature(t *testing.T) {
	intake := &recordingIntake{}
	h := NewEventsHandler(testSecret, intake)
	body := callback(`{"type":"message","channel":"C1","user":"U1","text":"hi","ts":"1.1"}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, "wrong-secret", body))
	h.Wait()

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, intake.Messages())
}

func TestEventsHandler_DispatchesMessages(t *testing.T) {
	intake := &recordingIntake{}
	h := NewEventsHandler(testSecret, intake)
	body := callback(`{"type":"message","channel":"C1","user":"U1","text":"NOVO FORMULÁRIO - X - responder até dia 1/7","ts":"100.1"}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, testSecret, body))
	h.Wait()

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, intake.Messages(), 1)
	assert.Equal(t, formbot.Message{
		Text:      "NOVO FORMULÁRIO - X - responder até dia 1/7",
		Channel:   "C1",
		Timestamp: "100.1",
		AuthorID:  "U1",
	}, intake.Messages()[0])
}

func TestEventsHandler_MarksBotMessages(t *testing.T) {
	intake := &recordingIntake{}
	h := NewEventsHandler(testSecret, intake)
	body := callback(`{"type":"message","subtype":"bot_message","channel":"C1","bot_id":"B1","text":"hi","ts":"1.1"}`)

	h.ServeHTTP(httptest.NewRecorder(), signedRequest(t, testSecret, body))
	h.Wait()

	require.Len(t, intake.Messages(), 1)
	assert.True(t, intake.Messages()[0].IsBot)
}

func TestEventsHandler_DropsEdits(t *testing.T) {
	intake := &recordingIntake{}
	h := NewEventsHandler(testSecret, intake)
	body := callback(`{"type":"message","subtype":"message_changed","channel":"C1","ts":"1.2"}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, testSecret, body))
	h.Wait()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, intake.Messages())
}

func TestEventsHandler_NoSecretSkipsVerification(t *testing.T) {
	intake := &recordingIntake{}
	h := NewEventsHandler("", intake)
	body := callback(`{"type":"message","channel":"C1","user":"U1","text":"hi","ts":"1.1"}`)

	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	h.Wait()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, intake.Messages(), 1)
}
