package bot

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// openai.Client interface wrapping for modularity and testing
// implements methods used in this project
type AssistantClient interface {
	// see openai.Client.CreateThread
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	// see openai.Client.CreateMessage
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	// see openai.Client.ListMessage
	ListMessage(
		ctx context.Context,
		threadID string,
		limit *int,
		order *string,
		after *string,
		before *string,
	) (openai.MessagesList, error)

	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID string, runID string) (openai.Run, error)
	SubmitToolOutputs(
		ctx context.Context,
		threadID string,
		runID string,
		request openai.SubmitToolOutputsRequest,
	) (openai.Run, error)

	// only used while bootstrapping the assistant profile
	RetrieveAssistant(ctx context.Context, assistantID string) (openai.Assistant, error)
	CreateAssistant(ctx context.Context, request openai.AssistantRequest) (openai.Assistant, error)
	CreateFile(ctx context.Context, request openai.FileRequest) (openai.File, error)
	CreateVectorStore(ctx context.Context, request openai.VectorStoreRequest) (openai.VectorStore, error)
}

var _ AssistantClient = (*openai.Client)(nil)

func NewAIClient(apiKey string) *openai.Client {
	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.AssistantVersion = "v2"
	return openai.NewClientWithConfig(clientConfig)
}
