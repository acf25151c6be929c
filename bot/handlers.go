package bot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	TIMEOUT_RESPONSE = "timeout"
	ERROR_RESPONSE   = "error"
	STATUS_COMPLETED = "completed"
	STATUS_FAILED    = "failed"

	MAX_BODY_BYTES = 1 << 20
)

// Conversation is what the handlers need from the orchestrator.
type Conversation interface {
	StartConversation(ctx context.Context) (string, error)
	StartRun(ctx context.Context, threadID string, message string) (string, error)
	AwaitCompletion(ctx context.Context, threadID string, runID string) Outcome
}

var _ Conversation = (*Orchestrator)(nil)

type StartResponse struct {
	ThreadID string `json:"thread_id"`
}

type ChatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

type ChatResponse struct {
	RunID string `json:"run_id"`
}

type CheckRequest struct {
	ThreadID string `json:"thread_id"`
	RunID    string `json:"run_id"`
}

type CheckResponse struct {
	Response string `json:"response"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Handlers struct {
	conversation Conversation
}

func NewHandlers(conversation Conversation) *Handlers {
	return &Handlers{conversation: conversation}
}

// Routes registers every endpoint on a new mux wrapped with request ids.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /start", h.handleStart)
	mux.HandleFunc("POST /chat", h.handleChat)
	mux.HandleFunc("POST /check", h.handleCheck)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	return withRequestID(mux)
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), RequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handlers) handleStart(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFromContext(r.Context())

	threadID, err := h.conversation.StartConversation(r.Context())
	if err != nil {
		log.Printf("[%s] unable to start conversation: %s\n", reqID, err)
		sendJSONError(w, http.StatusBadGateway, "unable to start conversation")
		return
	}

	log.Printf("[%s] New conversation started with thread ID: %s\n", reqID, threadID)
	sendJSON(w, http.StatusOK, StartResponse{ThreadID: threadID})
}

func (h *Handlers) handleChat(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFromContext(r.Context())

	var req ChatRequest
	if err := decodeBody(r, &req); err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ThreadID = strings.TrimSpace(req.ThreadID)
	if req.ThreadID == "" {
		log.Printf("[%s] Error: Missing thread_id in /chat\n", reqID)
		sendJSONError(w, http.StatusBadRequest, "Missing thread_id")
		return
	}
	log.Printf("[%s] Received message for thread ID: %s Message: %s\n", reqID, req.ThreadID, req.Message)

	runID, err := h.conversation.StartRun(r.Context(), req.ThreadID, req.Message)
	if err != nil {
		log.Printf("[%s] unable to start run: %s\n", reqID, err)
		sendJSONError(w, http.StatusBadGateway, "unable to start run")
		return
	}

	sendJSON(w, http.StatusOK, ChatResponse{RunID: runID})
}

func (h *Handlers) handleCheck(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFromContext(r.Context())

	var req CheckRequest
	if err := decodeBody(r, &req); err != nil {
		sendJSON(w, http.StatusBadRequest, CheckResponse{Response: ERROR_RESPONSE, Error: err.Error()})
		return
	}
	req.ThreadID = strings.TrimSpace(req.ThreadID)
	req.RunID = strings.TrimSpace(req.RunID)
	if req.ThreadID == "" || req.RunID == "" {
		log.Printf("[%s] Error: Missing thread_id or run_id in /check\n", reqID)
		sendJSON(w, http.StatusBadRequest, CheckResponse{
			Response: ERROR_RESPONSE,
			Error:    "Missing thread_id or run_id",
		})
		return
	}

	outcome := h.conversation.AwaitCompletion(r.Context(), req.ThreadID, req.RunID)
	log.Printf("[%s] run %s outcome: %s\n", reqID, req.RunID, outcome.Kind)

	switch outcome.Kind {
	case OutcomeCompleted:
		sendJSON(w, http.StatusOK, CheckResponse{Response: outcome.Text, Status: STATUS_COMPLETED})
	case OutcomeFailed:
		sendJSON(w, http.StatusOK, CheckResponse{
			Response: ERROR_RESPONSE,
			Status:   STATUS_FAILED,
			Error:    outcome.Reason,
		})
	default:
		sendJSON(w, http.StatusOK, CheckResponse{Response: TIMEOUT_RESPONSE})
	}
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody treats an empty body as an empty request so missing fields
// get the field specific error.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, MAX_BODY_BYTES)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errors.New("invalid JSON body")
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Println("unable to write response: ", err)
	}
}

func sendJSONError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, map[string]string{"error": message})
}
