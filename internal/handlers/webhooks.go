package handlers

import (
	"net/http"
	"strings"

	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Bot webhook event names
const (
	botEventTranscript    = "transcript.data"
	botEventTranscription = "bot.transcription"
	botEventStatusChange  = "bot.status_change"
	botEventCallEnded     = "bot.call_ended"
	botEventDone          = "bot.done"
)

// WebhookHandler receives meeting-bot events and feeds them to capture sessions
type WebhookHandler struct {
	sessions CaptureSessions
	logger   *zap.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(sessions CaptureSessions, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers webhook routes
// The router should already have the /webhooks prefix
func (h *WebhookHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/bot-transcript", h.BotTranscript).Methods("POST")
}

// BotEvent is a meeting-bot webhook delivery. Newer deliveries name the event
// in "event" and nest the bot; older ones use "type" and a flat bot_id.
type BotEvent struct {
	Event string       `json:"event"`
	Type  string       `json:"type"`
	Data  BotEventData `json:"data"`
}

// BotEventData is the union of the event payloads we consume
type BotEventData struct {
	BotID string `json:"bot_id"`
	Bot   *struct {
		ID string `json:"id"`
	} `json:"bot,omitempty"`
	Data *struct {
		Words []struct {
			Text string `json:"text"`
		} `json:"words"`
		Participant struct {
			Name string `json:"name"`
		} `json:"participant"`
	} `json:"data,omitempty"`
	Transcript *struct {
		OriginalTranscript string `json:"original_transcript"`
		Speaker            string `json:"speaker"`
	} `json:"transcript,omitempty"`
	Status *struct {
		Code string `json:"code"`
	} `json:"status,omitempty"`
}

func (e BotEvent) name() string {
	if e.Event != "" {
		return e.Event
	}
	return e.Type
}

func (e BotEvent) botID() string {
	if e.Data.Bot != nil && e.Data.Bot.ID != "" {
		return e.Data.Bot.ID
	}
	return e.Data.BotID
}

// utterance returns the "speaker: words" line carried by a transcript event
func (e BotEvent) utterance() string {
	var speaker, text string
	switch {
	case e.Data.Data != nil:
		words := make([]string, 0, len(e.Data.Data.Words))
		for _, w := range e.Data.Data.Words {
			if t := strings.TrimSpace(w.Text); t != "" {
				words = append(words, t)
			}
		}
		speaker = e.Data.Data.Participant.Name
		text = strings.Join(words, " ")
	case e.Data.Transcript != nil:
		speaker = e.Data.Transcript.Speaker
		text = strings.TrimSpace(e.Data.Transcript.OriginalTranscript)
	}
	if text == "" {
		return ""
	}
	if speaker == "" {
		return text
	}
	return speaker + ": " + text
}

func (e BotEvent) callEnded() bool {
	switch e.name() {
	case botEventCallEnded, botEventDone:
		return true
	case botEventStatusChange:
		return e.Data.Status != nil && (e.Data.Status.Code == "call_ended" || e.Data.Status.Code == "done")
	}
	return false
}

// BotWebhookResponse acknowledges a delivery
type BotWebhookResponse struct {
	Received bool   `json:"received"`
	Action   string `json:"action"`
}

// BotTranscript appends live transcript lines to the bot's capture session
// and ends the session when the call is over
func (h *WebhookHandler) BotTranscript(w http.ResponseWriter, r *http.Request) {
	var event BotEvent
	if !decodeJSON(w, r, &event) {
		return
	}

	botID := event.botID()
	if botID == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "bot id is required")
		return
	}
	log := h.logger.With(zap.String("event", event.name()), zap.String("bot_id", botID))

	switch {
	case event.name() == botEventTranscript || event.name() == botEventTranscription:
		line := event.utterance()
		if line == "" {
			respondJSON(w, http.StatusOK, BotWebhookResponse{Received: true, Action: "ignored"})
			return
		}
		h.sessions.Start(botID, models.TaskSourceBotRecall, "")
		if _, err := h.sessions.Append(botID, line); err != nil {
			respondServiceError(w, log, err)
			return
		}
		respondJSON(w, http.StatusOK, BotWebhookResponse{Received: true, Action: "appended"})

	case event.callEnded():
		report, err := h.sessions.End(r.Context(), botID)
		if err != nil {
			// Calls with no transcript never opened a session
			log.Info("bot_call_ended_without_session")
			respondJSON(w, http.StatusOK, BotWebhookResponse{Received: true, Action: "ignored"})
			return
		}
		log.Info("bot_session_ended",
			zap.String("outcome", report.Outcome.String()),
			zap.Int("tasks_created", report.Result.TasksCreated),
		)
		respondJSON(w, http.StatusOK, BotWebhookResponse{Received: true, Action: "ended"})

	default:
		log.Debug("bot_event_ignored")
		respondJSON(w, http.StatusOK, BotWebhookResponse{Received: true, Action: "ignored"})
	}
}
