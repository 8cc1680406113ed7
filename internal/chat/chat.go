// Package chat renders chat messages into the prompt format a model was
// fine-tuned on, the way a tokenizer's chat template would.
package chat

import (
	"errors"
	"fmt"
	"strings"
)

// Roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Template names.
const (
	Llama2  = "llama-2"
	Llama3  = "llama-3"
	ChatML  = "chatml"
	Zephyr  = "zephyr"
	Mistral = "mistral"
)

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// ErrUnknownTemplate is returned for template names Format does not know.
var ErrUnknownTemplate = errors.New("unknown chat template")

// Templates lists the supported template names.
func Templates() []string { return []string{ChatML, Llama2, Llama3, Mistral, Zephyr} }

// TemplateForFamily maps a model family to its chat template. Unknown
// families fall back to llama-2.
func TemplateForFamily(family string) string {
	switch strings.ToLower(family) {
	case "llama", "llama-2", "llama2", "codellama":
		return Llama2
	case "llama-3", "llama3", "llama-3.1":
		return Llama3
	case "zephyr", "tinyllama":
		return Zephyr
	case "mistral", "mixtral":
		return Mistral
	case "chatml", "qwen", "qwen2", "openhermes", "yi":
		return ChatML
	}
	return Llama2
}

// Format renders messages with the named template and leaves the prompt open
// for the assistant's reply.
func Format(template string, messages []Message) (string, error) {
	if err := validate(messages); err != nil {
		return "", err
	}
	switch template {
	case Zephyr:
		return formatZephyr(messages), nil
	case ChatML:
		return formatChatML(messages), nil
	case Llama3:
		return formatLlama3(messages), nil
	case Llama2:
		return formatInst(messages, true), nil
	case Mistral:
		return formatInst(messages, false), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, template)
}

func validate(messages []Message) error {
	if len(messages) == 0 {
		return errors.New("at least one message is required")
	}
	for i, m := range messages {
		switch m.Role {
		case RoleSystem:
			if i != 0 {
				return fmt.Errorf("message %d: system message must come first", i)
			}
		case RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}
	if messages[len(messages)-1].Role != RoleUser {
		return errors.New("last message must be from the user")
	}
	return nil
}

func formatZephyr(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "<|%s|>\n%s</s>\n", m.Role, m.Content)
	}
	b.WriteString("<|assistant|>\n")
	return b.String()
}

func formatChatML(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "<|im_start|>%s\n%s<|im_end|>\n", m.Role, m.Content)
	}
	b.WriteString("<|im_start|>assistant\n")
	return b.String()
}

func formatLlama3(messages []Message) string {
	var b strings.Builder
	b.WriteString("<|begin_of_text|>")
	for _, m := range messages {
		fmt.Fprintf(&b, "<|start_header_id|>%s<|end_header_id|>\n\n%s<|eot_id|>", m.Role, strings.TrimSpace(m.Content))
	}
	b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	return b.String()
}

// formatInst renders the [INST] family. Llama 2 wraps the system prompt in
// <<SYS>> markers; Mistral has no system role and prepends it to the first
// user turn.
func formatInst(messages []Message, sysMarkers bool) string {
	system := ""
	if messages[0].Role == RoleSystem {
		system = messages[0].Content
		messages = messages[1:]
	}
	var b strings.Builder
	first := true
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			content := m.Content
			if first && system != "" {
				if sysMarkers {
					content = "<<SYS>>\n" + system + "\n<</SYS>>\n\n" + content
				} else {
					content = system + "\n\n" + content
				}
			}
			fmt.Fprintf(&b, "<s>[INST] %s [/INST]", strings.TrimSpace(content))
			first = false
		case RoleAssistant:
			fmt.Fprintf(&b, " %s </s>", strings.TrimSpace(m.Content))
		}
	}
	return b.String()
}
