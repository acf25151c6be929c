package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type OutcomeKind int

const (
	// the run was still queued or in progress when the budget ran out
	OutcomePending OutcomeKind = iota
	OutcomeCompleted
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePending:
		return "pending"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

type Outcome struct {
	Kind OutcomeKind
	// annotation free reply, set when Kind is OutcomeCompleted
	Text string
	// set when Kind is OutcomeFailed
	Reason string
}

func completed(text string) Outcome { return Outcome{Kind: OutcomeCompleted, Text: text} }
func pending() Outcome              { return Outcome{Kind: OutcomePending} }
func failed(reason string) Outcome  { return Outcome{Kind: OutcomeFailed, Reason: reason} }

// Orchestrator drives assistant runs. It keeps no conversation state, only
// the per-run locks in State.
type Orchestrator struct {
	AIClient    AssistantClient
	Dispatcher  *Dispatcher
	State       *State
	AssistantID string
	Model       string

	RunTimeout   time.Duration
	PollInterval time.Duration
}

func NewOrchestrator(
	client AssistantClient,
	dispatcher *Dispatcher,
	state *State,
	profile Profile,
	config *Config,
) *Orchestrator {
	return &Orchestrator{
		AIClient:     client,
		Dispatcher:   dispatcher,
		State:        state,
		AssistantID:  profile.AssistantID,
		Model:        profile.Model,
		RunTimeout:   config.RunTimeout,
		PollInterval: config.PollInterval,
	}
}

// StartConversation creates a new thread.
func (o *Orchestrator) StartConversation(ctx context.Context) (string, error) {
	thread, err := o.AIClient.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("unable to create thread: %w", err)
	}
	return thread.ID, nil
}

// StartRun appends the user's message and starts a run without waiting on it.
func (o *Orchestrator) StartRun(ctx context.Context, threadID string, message string) (string, error) {
	messageReq := openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	}
	_, err := o.AIClient.CreateMessage(ctx, threadID, messageReq)
	if err != nil {
		return "", fmt.Errorf("unable to create message: %w", err)
	}

	runReq := openai.RunRequest{
		AssistantID: o.AssistantID,
		Model:       o.Model,
	}
	run, err := o.AIClient.CreateRun(ctx, threadID, runReq)
	if err != nil {
		return "", fmt.Errorf("unable to create run: %w", err)
	}

	log.Println("Run started with ID: ", run.ID)
	return run.ID, nil
}

// AwaitCompletion polls the run until it finishes, fails or the run timeout
// is used up. Tool calls are answered as they show up. No upstream call
// outlives the timeout by more than one poll interval.
func (o *Orchestrator) AwaitCompletion(ctx context.Context, threadID string, runID string) Outcome {
	start := time.Now()
	callCtx, cancel := context.WithDeadline(ctx, start.Add(o.RunTimeout+o.PollInterval))
	defer cancel()

	var prevStatus openai.RunStatus
	for time.Since(start) < o.RunTimeout {
		run, err := o.AIClient.RetrieveRun(callCtx, threadID, runID)
		if err != nil {
			if callCtx.Err() != nil {
				log.Println("ran out of time retrieving run: ", err)
				return pending()
			}
			log.Println("error retrieving run: ", err)
			return failed(fmt.Sprintf("unable to retrieve run: %s", err))
		}

		if prevStatus != run.Status {
			log.Printf("Run status: %s\n", run.Status)
			prevStatus = run.Status
		}

		switch run.Status {
		case openai.RunStatusCompleted:
			messageList, err := o.AIClient.ListMessage(callCtx, threadID, nil, nil, nil, nil)
			if err != nil {
				if callCtx.Err() != nil {
					return pending()
				}
				return failed(fmt.Sprintf("unable to get messages: %s", err))
			}
			message, err := getNewestAssistantMessage(messageList)
			if err != nil {
				return failed(fmt.Sprintf("unable to read reply: %s", err))
			}
			log.Println("Run completed, returning response")
			return completed(message)

		case openai.RunStatusRequiresAction:
			log.Println("Action in progress...")
			if err := o.handleRequiresAction(callCtx, threadID, run); err != nil {
				if callCtx.Err() != nil {
					return pending()
				}
				log.Println("error handling required action: ", err)
				return failed(err.Error())
			}

		case openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCancelling:

		case openai.RunStatusFailed,
			openai.RunStatusCancelled,
			openai.RunStatusExpired,
			openai.RunStatusIncomplete:
			reason := runFailureReason(run)
			log.Println(reason)
			return failed(reason)

		default:
			log.Println("recieved unknown status from openai: ", run.Status)
			return failed(fmt.Sprintf("unknown run status %q", run.Status))
		}

		wait := o.PollInterval
		if remaining := o.RunTimeout - time.Since(start); remaining < wait {
			wait = remaining
		}
		if wait <= 0 {
			break
		}
		select {
		case <-ctx.Done():
			log.Println("caller went away while polling run: ", runID)
			return pending()
		case <-time.After(wait):
		}
	}

	log.Println("Run timed out")
	return pending()
}

// handleRequiresAction answers every pending tool call in one submission.
// Tool calls this process already answered are skipped so concurrent checks
// on the same run never double submit.
func (o *Orchestrator) handleRequiresAction(ctx context.Context, threadID string, run openai.Run) error {
	if run.RequiredAction == nil || run.RequiredAction.SubmitToolOutputs == nil {
		return errors.New("run requires action but has no tool calls")
	}

	unlock := o.State.LockRun(run.ID)
	defer unlock()

	toolCalls := run.RequiredAction.SubmitToolOutputs.ToolCalls
	ids := make([]string, len(toolCalls))
	for i, toolCall := range toolCalls {
		ids[i] = toolCall.ID
	}

	unanswered := o.State.Unanswered(run.ID, ids)
	if len(unanswered) == 0 {
		log.Println("tool calls already answered for run: ", run.ID)
		return nil
	}

	pendingCalls := make([]openai.ToolCall, 0, len(unanswered))
	for _, toolCall := range toolCalls {
		for _, id := range unanswered {
			if toolCall.ID == id {
				pendingCalls = append(pendingCalls, toolCall)
				break
			}
		}
	}

	// tools that already ran for this run are not run again, only resubmitted
	var freshCalls []openai.ToolCall
	for _, toolCall := range pendingCalls {
		if _, ok := o.State.Resolved(run.ID, toolCall.ID); !ok {
			freshCalls = append(freshCalls, toolCall)
		}
	}
	if len(freshCalls) < len(pendingCalls) {
		log.Printf("resubmitting %d stored tool outputs for run %s\n", len(pendingCalls)-len(freshCalls), run.ID)
	}
	o.State.StoreResolved(run.ID, o.Dispatcher.ResolveAll(ctx, threadID, run.ID, freshCalls))

	toolOutputs := make([]openai.ToolOutput, 0, len(pendingCalls))
	for _, toolCall := range pendingCalls {
		toolOutput, _ := o.State.Resolved(run.ID, toolCall.ID)
		toolOutputs = append(toolOutputs, toolOutput)
	}

	_, err := submitToolOutputs(ctx, o.AIClient, toolOutputs, threadID, run.ID)
	switch {
	case err == nil:
	case isAlreadySubmitted(err):
		log.Println("tool outputs already submitted elsewhere: ", err)
	default:
		return fmt.Errorf("unable to submit tool outputs: %w", err)
	}

	o.State.MarkAnswered(run.ID, unanswered)
	return nil
}

// isAlreadySubmitted reports whether the service rejected a submission
// because the run no longer waits for these outputs. Any other rejection,
// such as a malformed output, is a real failure.
func isAlreadySubmitted(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatusCode != http.StatusBadRequest {
		return false
	}
	message := strings.ToLower(apiErr.Message)
	return strings.Contains(message, "do not accept tool outputs") ||
		strings.Contains(message, "already submitted")
}

func submitToolOutputs(
	ctx context.Context,
	client AssistantClient,
	toolOutputs []openai.ToolOutput,
	threadID string,
	runID string,
) (openai.Run, error) {
	req := openai.SubmitToolOutputsRequest{
		ToolOutputs: toolOutputs,
	}
	return client.SubmitToolOutputs(ctx, threadID, runID, req)
}

func runFailureReason(run openai.Run) string {
	if run.LastError == nil {
		return fmt.Sprintf("openai run ended with status %s", run.Status)
	}
	return fmt.Sprintf(
		"openai run ended with status %s (%s): %s",
		run.Status,
		run.LastError.Code,
		run.LastError.Message,
	)
}
