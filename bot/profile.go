package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"
)

// Profile is the assistant configuration requests run against. It is built
// once at startup and never changes.
type Profile struct {
	AssistantID string
	Model       string
	Tools       []openai.AssistantTool
}

// LoadOrCreateAssistant reads the assistant id saved under config.ProfileName,
// creating and saving a new assistant when there is none.
func LoadOrCreateAssistant(
	ctx context.Context,
	client AssistantClient,
	db Database,
	dispatcher *Dispatcher,
	config *Config,
) (Profile, error) {
	assistantID := config.AssistantID
	if assistantID == "" {
		p, err := db.GetAssistantProfile(config.ProfileName)
		switch {
		case err == nil:
			assistantID = p.AssistantID
			log.Println("Loaded existing assistant ID.")
		case errors.Is(err, ErrProfileNotFound):
		default:
			return Profile{}, fmt.Errorf("reading assistant profile: %w", err)
		}
	}

	if assistantID != "" {
		assistant, err := client.RetrieveAssistant(ctx, assistantID)
		if err != nil {
			return Profile{}, fmt.Errorf("retrieving assistant %s: %w", assistantID, err)
		}
		return profileFromAssistant(assistant, config), nil
	}

	assistant, err := createAssistant(ctx, client, dispatcher, config)
	if err != nil {
		return Profile{}, err
	}

	err = db.SaveAssistantProfile(&AssistantProfile{
		Name:        config.ProfileName,
		AssistantID: assistant.ID,
	})
	if err != nil {
		return Profile{}, fmt.Errorf("saving assistant profile: %w", err)
	}
	log.Println("Created a new assistant and saved the ID.")

	return profileFromAssistant(assistant, config), nil
}

func profileFromAssistant(assistant openai.Assistant, config *Config) Profile {
	model := assistant.Model
	if model == "" {
		model = config.DefaultModel
	}
	return Profile{
		AssistantID: assistant.ID,
		Model:       model,
		Tools:       assistant.Tools,
	}
}

func createAssistant(
	ctx context.Context,
	client AssistantClient,
	dispatcher *Dispatcher,
	config *Config,
) (openai.Assistant, error) {
	name := "leadbot-" + config.ProfileName
	instructions := ASSISTANT_INSTRUCTIONS

	req := openai.AssistantRequest{
		Model:        config.DefaultModel,
		Name:         &name,
		Instructions: &instructions,
		Tools:        dispatcher.Definitions(),
	}

	if config.KnowledgeFile != "" {
		vectorStoreID, err := uploadKnowledge(ctx, client, config.KnowledgeFile)
		if err != nil {
			return openai.Assistant{}, err
		}
		req.Tools = append([]openai.AssistantTool{FileSearchAssistantTool}, req.Tools...)
		req.ToolResources = &openai.AssistantToolResource{
			FileSearch: &openai.AssistantToolFileSearch{
				VectorStoreIDs: []string{vectorStoreID},
			},
		}
	}

	assistant, err := client.CreateAssistant(ctx, req)
	if err != nil {
		return openai.Assistant{}, fmt.Errorf("creating assistant: %w", err)
	}
	return assistant, nil
}

// uploadKnowledge puts the knowledge document in a new vector store for file search.
func uploadKnowledge(ctx context.Context, client AssistantClient, path string) (string, error) {
	file, err := client.CreateFile(ctx, openai.FileRequest{
		FileName: filepath.Base(path),
		FilePath: path,
		Purpose:  "assistants",
	})
	if err != nil {
		return "", fmt.Errorf("uploading knowledge file %s: %w", path, err)
	}

	vectorStore, err := client.CreateVectorStore(ctx, openai.VectorStoreRequest{
		Name:    "leadbot knowledge",
		FileIDs: []string{file.ID},
	})
	if err != nil {
		return "", fmt.Errorf("creating vector store: %w", err)
	}
	log.Println("Uploaded knowledge file to vector store: ", vectorStore.ID)
	return vectorStore.ID, nil
}
