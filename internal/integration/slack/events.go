package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	goslack "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/colonyops/formbot/internal/core/logging"
	"github.com/colonyops/formbot/internal/formbot"
)

const maxEventBody = 1 << 20

// Intake consumes inbound chat messages.
type Intake interface {
	Handle(ctx context.Context, msg formbot.Message) (formbot.Result, error)
}

// EventsHandler serves the Slack Events API endpoint. Requests are verified
// with the signing secret, acknowledged right away and processed in the
// background so Slack never times out and retries.
type EventsHandler struct {
	secret string
	intake Intake
	log    zerolog.Logger
	wg     sync.WaitGroup
}

// NewEventsHandler creates an EventsHandler. An empty secret disables
// signature verification.
func NewEventsHandler(secret string, intake Intake) *EventsHandler {
	h := &EventsHandler{
		secret: secret,
		intake: intake,
		log:    logging.Component("slack-events"),
	}
	if secret == "" {
		h.log.Warn().Msg("signing secret not set, event signatures are not verified")
	}
	return h
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if err := h.verify(r.Header, body); err != nil {
		h.log.Warn().Err(err).Msg("rejected event with bad signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "invalid challenge", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))
		return
	case slackevents.CallbackEvent:
		if msg, ok := toMessage(event.InnerEvent); ok {
			h.dispatch(r.Context(), msg)
		}
	}

	w.WriteHeader(http.StatusOK)
}

// Wait blocks until every dispatched message has been processed.
func (h *EventsHandler) Wait() {
	h.wg.Wait()
}

func (h *EventsHandler) verify(header http.Header, body []byte) error {
	if h.secret == "" {
		return nil
	}

	sv, err := goslack.NewSecretsVerifier(header, h.secret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

func (h *EventsHandler) dispatch(reqCtx context.Context, msg formbot.Message) {
	ctx := context.WithoutCancel(reqCtx)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		res, err := h.intake.Handle(ctx, msg)
		if err != nil {
			h.log.Error().Ctx(logging.WithChannel(ctx, msg.Channel)).Err(err).Msg("failed to handle message")
			return
		}
		h.log.Debug().Str("channel", msg.Channel).Str("outcome", string(res.Outcome)).Msg("message handled")
	}()
}

// toMessage maps a message event to a formbot.Message. Edits, deletions and
// other subtypes carry no new text and are dropped.
func toMessage(inner slackevents.EventsAPIInnerEvent) (formbot.Message, bool) {
	ev, ok := inner.Data.(*slackevents.MessageEvent)
	if !ok {
		return formbot.Message{}, false
	}

	switch ev.SubType {
	case "", "bot_message", "thread_broadcast", "file_share":
	default:
		return formbot.Message{}, false
	}

	return formbot.Message{
		Text:      ev.Text,
		Channel:   ev.Channel,
		Timestamp: ev.TimeStamp,
		AuthorID:  ev.User,
		IsBot:     ev.BotID != "" || ev.SubType == "bot_message",
	}, true
}
