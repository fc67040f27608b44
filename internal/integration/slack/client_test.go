package slack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiCall struct {
	Method string
	Form   url.Values
}

// fakeAPI serves canned Web API responses keyed by method name.
type fakeAPI struct {
	mu        sync.Mutex
	calls     []apiCall
	responses map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := r.URL.Path[len("/api/"):]

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Form: r.Form})
	body, ok := f.responses[method]
	f.mu.Unlock()

	if !ok {
		body = `{"ok":false,"error":"unknown_method"}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (f *fakeAPI) Calls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func newTestClient(t *testing.T, responses map[string]string) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{responses: responses}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	return NewClient("xoxb-test", 2*time.Second, goslack.OptionAPIURL(srv.URL+"/api/")), api
}

func TestClient_Send(t *testing.T) {
	client, api := newTestClient(t, map[string]string{
		"chat.postMessage": `{"ok":true,"channel":"C1","ts":"200.1"}`,
	})

	require.NoError(t, client.Send(context.Background(), "C1", "hello *world*", ""))
	require.NoError(t, client.Send(context.Background(), "C1", "in thread", "100.1"))

	calls := api.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "chat.postMessage", calls[0].Method)
	assert.Equal(t, "C1", calls[0].Form.Get("channel"))
	assert.Equal(t, "hello *world*", calls[0].Form.Get("text"))
	assert.Empty(t, calls[0].Form.Get("thread_ts"))
	assert.Equal(t, "100.1", calls[1].Form.Get("thread_ts"))
}

func TestClient_SendError(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"chat.postMessage": `{"ok":false,"error":"channel_not_found"}`,
	})

	err := client.Send(context.Background(), "C404", "hello", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestClient_AddMarker(t *testing.T) {
	client, api := newTestClient(t, map[string]string{
		"reactions.add": `{"ok":true}`,
	})

	require.NoError(t, client.AddMarker(context.Background(), "C1", "100.1", "white_check_mark"))

	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "white_check_mark", calls[0].Form.Get("name"))
	assert.Equal(t, "C1", calls[0].Form.Get("channel"))
	assert.Equal(t, "100.1", calls[0].Form.Get("timestamp"))
}

func TestClient_AddMarkerAlreadyReacted(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"reactions.add": `{"ok":false,"error":"already_reacted"}`,
	})

	assert.NoError(t, client.AddMarker(context.Background(), "C1", "100.1", "white_check_mark"))
}

func TestClient_Identify(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"auth.test": `{"ok":true,"user":"formbot","team":"acme","user_id":"U1","team_id":"T1"}`,
	})

	who, err := client.Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "formbot@acme", who)
}
