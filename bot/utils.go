package bot

import (
	"errors"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// annotationText pulls the literal citation text out of an annotation.
// go-openai leaves annotations untyped, so this handles the decoded map form.
func annotationText(annotation any) (string, bool) {
	switch a := annotation.(type) {
	case map[string]any:
		text, ok := a["text"].(string)
		return text, ok && text != ""
	case map[string]string:
		text, ok := a["text"]
		return text, ok && text != ""
	default:
		return "", false
	}
}

// stripAnnotations removes the first occurrence of every annotation's text.
// Citations never overlap so the order does not matter.
func stripAnnotations(value string, annotations []any) string {
	for _, annotation := range annotations {
		text, ok := annotationText(annotation)
		if !ok {
			log.Printf("skipping annotation without text: %v\n", annotation)
			continue
		}
		value = strings.Replace(value, text, "", 1)
	}
	return value
}

// getNewestAssistantMessage returns the text of the newest assistant message.
// The list comes back newest first.
func getNewestAssistantMessage(messageList openai.MessagesList) (string, error) {
	if len(messageList.Messages) <= 0 {
		return "", errors.New("recieved zero length message list")
	}
	for _, message := range messageList.Messages {
		if message.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		for _, content := range message.Content {
			if content.Text == nil {
				continue
			}
			return stripAnnotations(content.Text.Value, content.Text.Annotations), nil
		}
		return "", fmt.Errorf("message %s has no text content", message.ID)
	}
	return "", errors.New("could not find an assistant message")
}
