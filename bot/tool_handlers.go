package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"leadbot/crm"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

type FuncArgs struct {
	JsonValue string
	FuncName  string
	ToolID    string
	ThreadID  string
	RunID     string
}

// ToolHandler always returns an output for the assistant, even alongside an
// error. The error is only logged.
type ToolHandler func(ctx context.Context, funcArg FuncArgs) (string, error)

type Tool struct {
	Definition openai.FunctionDefinition
	Handler    ToolHandler
}

type Dispatcher struct {
	tools map[string]Tool
}

func NewDispatcher(tools ...Tool) (*Dispatcher, error) {
	d := &Dispatcher{tools: make(map[string]Tool)}
	for _, tool := range tools {
		name := tool.Definition.Name
		if name == "" {
			return nil, errors.New("tool definition has no name")
		}
		if tool.Handler == nil {
			return nil, fmt.Errorf("tool %s has no handler", name)
		}
		if _, exists := d.tools[name]; exists {
			return nil, fmt.Errorf("tool %s registered twice", name)
		}
		d.tools[name] = tool
	}
	return d, nil
}

// Validate checks every function tool the assistant declares has a handler.
func (d *Dispatcher) Validate(declared []openai.AssistantTool) error {
	var missing []string
	for _, tool := range declared {
		if tool.Type != openai.AssistantToolTypeFunction || tool.Function == nil {
			continue
		}
		if _, ok := d.tools[tool.Function.Name]; !ok {
			missing = append(missing, tool.Function.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("assistant declares tools with no handler: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Definitions returns the function tools in the form the assistant declares them.
func (d *Dispatcher) Definitions() []openai.AssistantTool {
	names := make([]string, 0, len(d.tools))
	for name := range d.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var result []openai.AssistantTool
	for _, name := range names {
		def := d.tools[name].Definition
		result = append(result, openai.AssistantTool{
			Type:     openai.AssistantToolTypeFunction,
			Function: &def,
		})
	}
	return result
}

func (d *Dispatcher) Resolve(ctx context.Context, threadID string, runID string, toolCall openai.ToolCall) openai.ToolOutput {
	funcArg := FuncArgs{
		FuncName:  toolCall.Function.Name,
		JsonValue: toolCall.Function.Arguments,
		ToolID:    toolCall.ID,
		ThreadID:  threadID,
		RunID:     runID,
	}
	log.Printf("recieved function request:%+v", funcArg)

	tool, ok := d.tools[funcArg.FuncName]
	if !ok {
		log.Println("recieved unknown function: ", funcArg.FuncName)
		return openai.ToolOutput{
			ToolCallID: funcArg.ToolID,
			Output:     errorOutput(fmt.Sprintf("unknown function %s", funcArg.FuncName)),
		}
	}

	output, err := tool.Handler(ctx, funcArg)
	if err != nil {
		log.Printf("error handling %s: %s\n", funcArg.FuncName, err)
	}
	if output == "" {
		output = errorOutput("no output")
	}
	return openai.ToolOutput{ToolCallID: funcArg.ToolID, Output: output}
}

// ResolveAll returns one output per tool call in the same order.
func (d *Dispatcher) ResolveAll(ctx context.Context, threadID string, runID string, toolCalls []openai.ToolCall) []openai.ToolOutput {
	toolOutputs := make([]openai.ToolOutput, 0, len(toolCalls))
	for _, toolCall := range toolCalls {
		toolOutputs = append(toolOutputs, d.Resolve(ctx, threadID, runID, toolCall))
	}
	return toolOutputs
}

func errorOutput(message string) string {
	data, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return `{"error":"unable to serialize error"}`
	}
	return string(data)
}

type LeadRecorder interface {
	RecordLead(ctx context.Context, lead crm.Lead) (json.RawMessage, error)
}

type CreateLeadFuncArgs struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (args CreateLeadFuncArgs) validate() error {
	var missing []string
	if strings.TrimSpace(args.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(args.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// NewCreateLeadTool binds create_lead to the CRM. db may be nil.
func NewCreateLeadTool(recorder LeadRecorder, db Database) Tool {
	return Tool{
		Definition: CreateLeadFuncDef,
		Handler: func(ctx context.Context, funcArg FuncArgs) (string, error) {
			return handleCreateLead(ctx, funcArg, recorder, db)
		},
	}
}

func handleCreateLead(ctx context.Context, funcArg FuncArgs, recorder LeadRecorder, db Database) (string, error) {
	args := CreateLeadFuncArgs{}
	err := json.Unmarshal([]byte(funcArg.JsonValue), &args)
	if err != nil {
		log.Println("Could not unmarshal func args: ", funcArg.JsonValue)
		return errorOutput("invalid arguments: expected {name, phone}"), err
	}
	if err := args.validate(); err != nil {
		return errorOutput(err.Error()), err
	}

	lead := crm.Lead{
		Name:  strings.TrimSpace(args.Name),
		Phone: strings.TrimSpace(args.Phone),
	}
	log.Printf("capturing lead for thread %s: %s\n", funcArg.ThreadID, lead.Name)

	resp, err := recorder.RecordLead(ctx, lead)
	auditLead(db, funcArg, lead, err)
	if err != nil {
		return errorOutput("lead capture failed: " + err.Error()), err
	}
	if len(resp) == 0 {
		return `{}`, nil
	}
	return string(resp), nil
}

func auditLead(db Database, funcArg FuncArgs, lead crm.Lead, leadErr error) {
	if db == nil {
		return
	}
	lr := &LeadRecord{
		ID:         uuid.NewString(),
		ThreadID:   funcArg.ThreadID,
		RunID:      funcArg.RunID,
		ToolCallID: funcArg.ToolID,
		Name:       lead.Name,
		Phone:      lead.Phone,
		Success:    leadErr == nil,
	}
	if leadErr != nil {
		lr.Error = leadErr.Error()
	}
	if err := db.CreateLeadRecord(lr); err != nil {
		log.Println("unable to save lead record: ", err)
	}
}
