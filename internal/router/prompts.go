package router

import "strings"

const (
	defaultLocalSystem  = "You are a concise, helpful assistant. Use the context and conversation history when relevant. Be brief."
	defaultRemoteSystem = "You are a helpful assistant. Use the provided context and history when relevant."
)

// PromptParts are the ingredients shared by both prompt shapes.
type PromptParts struct {
	System    string
	History   string
	Knowledge string
	Message   string
}

// BuildLocalPrompt renders parts with Gemma turn markers. Empty history and
// knowledge sections are omitted.
func BuildLocalPrompt(p PromptParts) string {
	var sb strings.Builder
	sb.WriteString("<start_of_turn>system\n")
	sb.WriteString(p.System)
	sb.WriteString("\n")
	if p.History != "" {
		sb.WriteString("\nConversation history:\n")
		sb.WriteString(p.History)
		sb.WriteString("\n")
	}
	if p.Knowledge != "" {
		sb.WriteString("\nRetrieved knowledge:\n")
		sb.WriteString(p.Knowledge)
		sb.WriteString("\n")
	}
	sb.WriteString("<end_of_turn>\n<start_of_turn>user\n")
	sb.WriteString(p.Message)
	sb.WriteString("<end_of_turn>\n<start_of_turn>model\n")
	return sb.String()
}

// BuildRemotePrompt renders parts as plain-text sections separated by a
// blank line. Empty history and knowledge sections are omitted.
func BuildRemotePrompt(p PromptParts) string {
	sections := []string{p.System}
	if p.History != "" {
		sections = append(sections, p.History)
	}
	if p.Knowledge != "" {
		sections = append(sections, "=== Retrieved Knowledge ===\n"+p.Knowledge)
	}
	sections = append(sections, "User: "+p.Message+"\nAssistant:")
	return strings.Join(sections, "\n\n")
}
