package bot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.OpenAIKey = "sk-test"
	cfg.AirtableKey = "pat-test"
	cfg.RunTimeout = TEST_RUN_TIMEOUT
	cfg.PollInterval = TEST_POLL_INTERVAL
	return cfg
}

func newLeadDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	dispatcher, err := NewDispatcher(NewCreateLeadTool(&MockLeadRecorder{}, nil))
	require.NoError(t, err)
	return dispatcher
}

func TestLoadOrCreateAssistant_CreatesWhenAbsent(t *testing.T) {
	client := NewMockAIClient()
	db := newTestDB(t)
	cfg := newTestConfig()

	profile, err := LoadOrCreateAssistant(context.Background(), client, db, newLeadDispatcher(t), cfg)
	require.NoError(t, err)

	assert.Equal(t, "asst_1", profile.AssistantID)
	assert.Equal(t, openai.GPT4o, profile.Model)
	require.Len(t, client.createdAssistants, 1)
	req := client.createdAssistants[0]
	assert.Equal(t, "leadbot-default", *req.Name)
	assert.Equal(t, ASSISTANT_INSTRUCTIONS, *req.Instructions)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, CreateLeadKey, req.Tools[0].Function.Name)
	assert.Nil(t, req.ToolResources)
	assert.Empty(t, client.uploadedFiles)

	saved, err := db.GetAssistantProfile(DEFAULT_PROFILE_NAME)
	require.NoError(t, err)
	assert.Equal(t, "asst_1", saved.AssistantID)
}

func TestLoadOrCreateAssistant_ReusesSavedProfile(t *testing.T) {
	client := NewMockAIClient()
	db := newTestDB(t)
	cfg := newTestConfig()
	dispatcher := newLeadDispatcher(t)

	first, err := LoadOrCreateAssistant(context.Background(), client, db, dispatcher, cfg)
	require.NoError(t, err)
	second, err := LoadOrCreateAssistant(context.Background(), client, db, dispatcher, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.AssistantID, second.AssistantID)
	assert.Len(t, client.createdAssistants, 1)
}

func TestLoadOrCreateAssistant_UploadsKnowledge(t *testing.T) {
	client := NewMockAIClient()
	cfg := newTestConfig()
	cfg.KnowledgeFile = filepath.Join(t.TempDir(), "offer.md")
	require.NoError(t, os.WriteFile(cfg.KnowledgeFile, []byte("6 week accelerator"), 0o600))

	profile, err := LoadOrCreateAssistant(context.Background(), client, newTestDB(t), newLeadDispatcher(t), cfg)
	require.NoError(t, err)

	require.Len(t, client.uploadedFiles, 1)
	assert.Equal(t, "offer.md", client.uploadedFiles[0].FileName)
	assert.Equal(t, "assistants", client.uploadedFiles[0].Purpose)
	require.Len(t, client.vectorStores, 1)
	assert.Equal(t, []string{"file_1"}, client.vectorStores[0].FileIDs)

	req := client.createdAssistants[0]
	require.Len(t, req.Tools, 2)
	assert.Equal(t, openai.AssistantToolTypeFileSearch, req.Tools[0].Type)
	require.NotNil(t, req.ToolResources)
	assert.Equal(t, []string{"vs_1"}, req.ToolResources.FileSearch.VectorStoreIDs)
	assert.Len(t, profile.Tools, 2)
}

func TestLoadOrCreateAssistant_ConfiguredID(t *testing.T) {
	client := NewMockAIClient()
	client.assistants["asst_env"] = openai.Assistant{
		ID:    "asst_env",
		Model: "gpt-4o-mini",
		Tools: []openai.AssistantTool{CreateLeadAssistantTool},
	}
	db := newTestDB(t)
	cfg := newTestConfig()
	cfg.AssistantID = "asst_env"

	profile, err := LoadOrCreateAssistant(context.Background(), client, db, newLeadDispatcher(t), cfg)
	require.NoError(t, err)

	assert.Equal(t, "asst_env", profile.AssistantID)
	assert.Equal(t, "gpt-4o-mini", profile.Model)
	assert.Empty(t, client.createdAssistants)
	_, err = db.GetAssistantProfile(cfg.ProfileName)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestLoadOrCreateAssistant_UnknownID(t *testing.T) {
	cfg := newTestConfig()
	cfg.AssistantID = "asst_gone"

	_, err := LoadOrCreateAssistant(context.Background(), NewMockAIClient(), newTestDB(t), newLeadDispatcher(t), cfg)
	assert.ErrorContains(t, err, "asst_gone")
}

func TestProfileFromAssistant_FallsBackToDefaultModel(t *testing.T) {
	cfg := newTestConfig()
	profile := profileFromAssistant(openai.Assistant{ID: "asst_1"}, cfg)
	assert.Equal(t, cfg.DefaultModel, profile.Model)
}
