package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"leadbot/crm"

	openai "github.com/sashabaranov/go-openai"
)

// FOR TESTING
// MockAIClient plays back a scripted list of run states. Once the script
// runs out the last state repeats.
type MockAIClient struct {
	mu sync.Mutex

	runScript     []openai.Run
	retrieveCalls int
	retrieveErr   error

	messages openai.MessagesList
	listErr  error

	submitted [][]openai.ToolOutput
	submitErr error

	threadCount     int
	createThreadErr error
	createdMessages []openai.MessageRequest
	createdRuns     []openai.RunRequest
	createRunErr    error

	assistants        map[string]openai.Assistant
	createdAssistants []openai.AssistantRequest
	uploadedFiles     []openai.FileRequest
	vectorStores      []openai.VectorStoreRequest
}

func NewMockAIClient(script ...openai.Run) *MockAIClient {
	return &MockAIClient{
		runScript:  script,
		assistants: make(map[string]openai.Assistant),
	}
}

func (m *MockAIClient) CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createThreadErr != nil {
		return openai.Thread{}, m.createThreadErr
	}
	m.threadCount++
	return openai.Thread{ID: fmt.Sprintf("thread_%d", m.threadCount)}, nil
}

func (m *MockAIClient) CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createdMessages = append(m.createdMessages, request)
	return openai.Message{ID: fmt.Sprintf("msg_%d", len(m.createdMessages)), ThreadID: threadID}, nil
}

func (m *MockAIClient) ListMessage(
	ctx context.Context,
	threadID string,
	limit *int,
	order *string,
	after *string,
	before *string,
) (openai.MessagesList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages, m.listErr
}

func (m *MockAIClient) CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createRunErr != nil {
		return openai.Run{}, m.createRunErr
	}
	m.createdRuns = append(m.createdRuns, request)
	return openai.Run{
		ID:       fmt.Sprintf("run_%d", len(m.createdRuns)),
		ThreadID: threadID,
		Status:   openai.RunStatusQueued,
	}, nil
}

func (m *MockAIClient) RetrieveRun(ctx context.Context, threadID string, runID string) (openai.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrieveCalls++
	if m.retrieveErr != nil {
		return openai.Run{}, m.retrieveErr
	}
	if len(m.runScript) == 0 {
		return openai.Run{ID: runID, ThreadID: threadID, Status: openai.RunStatusInProgress}, nil
	}
	idx := m.retrieveCalls - 1
	if idx >= len(m.runScript) {
		idx = len(m.runScript) - 1
	}
	run := m.runScript[idx]
	run.ID = runID
	run.ThreadID = threadID
	return run, nil
}

func (m *MockAIClient) SubmitToolOutputs(
	ctx context.Context,
	threadID string,
	runID string,
	request openai.SubmitToolOutputsRequest,
) (openai.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return openai.Run{}, err
	}
	if m.submitErr != nil {
		return openai.Run{}, m.submitErr
	}
	m.submitted = append(m.submitted, request.ToolOutputs)
	return openai.Run{ID: runID, ThreadID: threadID, Status: openai.RunStatusQueued}, nil
}

func (m *MockAIClient) RetrieveAssistant(ctx context.Context, assistantID string) (openai.Assistant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	assistant, ok := m.assistants[assistantID]
	if !ok {
		return openai.Assistant{}, &openai.APIError{HTTPStatusCode: 404, Message: "No assistant found"}
	}
	return assistant, nil
}

func (m *MockAIClient) CreateAssistant(ctx context.Context, request openai.AssistantRequest) (openai.Assistant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createdAssistants = append(m.createdAssistants, request)
	assistant := openai.Assistant{
		ID:    fmt.Sprintf("asst_%d", len(m.createdAssistants)),
		Model: request.Model,
		Tools: request.Tools,
	}
	m.assistants[assistant.ID] = assistant
	return assistant, nil
}

func (m *MockAIClient) CreateFile(ctx context.Context, request openai.FileRequest) (openai.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadedFiles = append(m.uploadedFiles, request)
	return openai.File{ID: fmt.Sprintf("file_%d", len(m.uploadedFiles))}, nil
}

func (m *MockAIClient) CreateVectorStore(ctx context.Context, request openai.VectorStoreRequest) (openai.VectorStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectorStores = append(m.vectorStores, request)
	return openai.VectorStore{ID: fmt.Sprintf("vs_%d", len(m.vectorStores))}, nil
}

func (m *MockAIClient) RetrieveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retrieveCalls
}

func (m *MockAIClient) Submitted() [][]openai.ToolOutput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]openai.ToolOutput(nil), m.submitted...)
}

// TotalCalls counts every call that reaches the assistant service.
func (m *MockAIClient) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threadCount + len(m.createdMessages) + len(m.createdRuns) + m.retrieveCalls + len(m.submitted)
}

type MockLeadRecorder struct {
	mu    sync.Mutex
	leads []crm.Lead
	resp  json.RawMessage
	err   error
	// simulates a slow CRM, ignores ctx like a request already in flight
	delay time.Duration
}

func (m *MockLeadRecorder) RecordLead(ctx context.Context, lead crm.Lead) (json.RawMessage, error) {
	time.Sleep(m.delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads = append(m.leads, lead)
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *MockLeadRecorder) Leads() []crm.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]crm.Lead(nil), m.leads...)
}

// helpers for building scripted runs and replies

func runWithStatus(status openai.RunStatus) openai.Run {
	return openai.Run{Status: status}
}

func runRequiringAction(toolCalls ...openai.ToolCall) openai.Run {
	return openai.Run{
		Status: openai.RunStatusRequiresAction,
		RequiredAction: &openai.RunRequiredAction{
			Type: openai.RequiredActionTypeSubmitToolOutputs,
			SubmitToolOutputs: &openai.SubmitToolOutputs{
				ToolCalls: toolCalls,
			},
		},
	}
}

func toolCall(id string, name string, args string) openai.ToolCall {
	return openai.ToolCall{
		ID:   id,
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

func assistantReply(value string, annotationTexts ...string) openai.MessagesList {
	annotations := make([]any, 0, len(annotationTexts))
	for _, text := range annotationTexts {
		annotations = append(annotations, map[string]any{
			"type": "file_citation",
			"text": text,
		})
	}
	firstID := "msg_reply"
	return openai.MessagesList{
		Messages: []openai.Message{
			{
				ID:   firstID,
				Role: openai.ChatMessageRoleAssistant,
				Content: []openai.MessageContent{
					{
						Type: "text",
						Text: &openai.MessageText{Value: value, Annotations: annotations},
					},
				},
			},
			{
				ID:   "msg_user",
				Role: openai.ChatMessageRoleUser,
				Content: []openai.MessageContent{
					{Type: "text", Text: &openai.MessageText{Value: "hi"}},
				},
			},
		},
		FirstID: &firstID,
	}
}
