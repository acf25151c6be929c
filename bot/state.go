package bot

import (
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// State holds the only in-process data: one lock per run so two /check
// calls for the same run never submit outputs for the same tool call.
// Everything else lives in the assistant service.
type State struct {
	runMap map[string]*runLock
	mu     sync.Mutex
}

type runLock struct {
	mu sync.Mutex
	// tool call id -> already submitted
	answered map[string]bool
	// tool call id -> output resolved but not yet accepted upstream
	resolved map[string]openai.ToolOutput
	lastUsed time.Time
	holders  int
}

func NewState() *State {
	return &State{
		runMap: make(map[string]*runLock),
	}
}

// LockRun blocks until the caller owns runID. The returned func releases it.
func (s *State) LockRun(runID string) func() {
	s.mu.Lock()
	rl, exists := s.runMap[runID]
	if !exists {
		rl = &runLock{
			answered: make(map[string]bool),
			resolved: make(map[string]openai.ToolOutput),
		}
		s.runMap[runID] = rl
	}
	rl.holders++
	rl.lastUsed = time.Now()
	s.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		s.mu.Lock()
		rl.holders--
		rl.lastUsed = time.Now()
		s.mu.Unlock()
	}
}

// Unanswered filters out tool calls already submitted for runID.
// Must be called while holding the run lock.
func (s *State) Unanswered(runID string, toolCallIDs []string) []string {
	rl := s.get(runID)
	if rl == nil {
		return toolCallIDs
	}
	var result []string
	for _, id := range toolCallIDs {
		if !rl.answered[id] {
			result = append(result, id)
		}
	}
	return result
}

// MarkAnswered must be called while holding the run lock.
func (s *State) MarkAnswered(runID string, toolCallIDs []string) {
	rl := s.get(runID)
	if rl == nil {
		return
	}
	for _, id := range toolCallIDs {
		rl.answered[id] = true
		delete(rl.resolved, id)
	}
}

// StoreResolved keeps outputs whose tool calls already ran so a failed
// submission is retried without running the tools again.
// Must be called while holding the run lock.
func (s *State) StoreResolved(runID string, toolOutputs []openai.ToolOutput) {
	rl := s.get(runID)
	if rl == nil {
		return
	}
	for _, toolOutput := range toolOutputs {
		rl.resolved[toolOutput.ToolCallID] = toolOutput
	}
}

// Resolved returns the stored output for a tool call, if any.
// Must be called while holding the run lock.
func (s *State) Resolved(runID string, toolCallID string) (openai.ToolOutput, bool) {
	rl := s.get(runID)
	if rl == nil {
		return openai.ToolOutput{}, false
	}
	toolOutput, ok := rl.resolved[toolCallID]
	return toolOutput, ok
}

func (s *State) get(runID string) *runLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runMap[runID]
}

// PruneIdle drops locks nobody holds that have been idle longer than ttl.
// Returns the number removed.
func (s *State) PruneIdle(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	now := time.Now()
	for runID, rl := range s.runMap {
		if rl.holders == 0 && now.Sub(rl.lastUsed) > ttl {
			delete(s.runMap, runID)
			removed++
		}
	}
	return removed
}

func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runMap)
}
