package bot

import (
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	// ai functions
	CreateLeadKey string = "create_lead"
)

var CreateLeadFuncDef = openai.FunctionDefinition{
	Name:        CreateLeadKey,
	Description: "Capture lead details and save to Airtable.",
	Parameters: &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"name": {
				Type:        jsonschema.String,
				Description: "Full name of the lead.",
			},
			"phone": {
				Type:        jsonschema.String,
				Description: "Phone number of the lead including country code.",
			},
		},
		Required: []string{
			"name",
			"phone",
		},
	},
}

// declared on the assistant alongside retrieval over the knowledge file
var CreateLeadAssistantTool = openai.AssistantTool{
	Type:     openai.AssistantToolTypeFunction,
	Function: &CreateLeadFuncDef,
}

var FileSearchAssistantTool = openai.AssistantTool{
	Type: openai.AssistantToolTypeFileSearch,
}
