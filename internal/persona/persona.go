// Package persona holds the assistant's identity and renders it as the system
// preamble for local and remote prompts.
package persona

import (
	"fmt"
	"strings"
)

// Persona describes who the assistant is and how it answers.
type Persona struct {
	Name          string `yaml:"name" json:"name"`
	Personality   string `yaml:"personality" json:"personality"`
	ResponseStyle string `yaml:"response_style" json:"response_style"`
	Humor         string `yaml:"humor" json:"humor"`
	Expertise     string `yaml:"expertise" json:"expertise"`
}

// Default returns the built-in persona used when no file is configured.
func Default() *Persona {
	return &Persona{
		Name:          "Switchboard",
		Personality:   "friendly, practical and precise",
		ResponseStyle: "clear and concise, never verbose",
		Humor:         "light and occasional",
		Expertise:     "general knowledge, software engineering, planning",
	}
}

// SystemPrompt returns the preamble for a backend. The local variant is
// shorter to save context on small models.
func (p *Persona) SystemPrompt(local bool) string {
	if local {
		return fmt.Sprintf(
			"You are %s. Personality: %s. Style: %s. Use the provided context when relevant. Be concise.",
			p.Name, p.Personality, p.ResponseStyle)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, an AI assistant.\n", p.Name)
	fmt.Fprintf(&sb, "Personality: %s.\n", p.Personality)
	fmt.Fprintf(&sb, "Response style: %s.\n", p.ResponseStyle)
	fmt.Fprintf(&sb, "Humor: %s.\n", p.Humor)
	fmt.Fprintf(&sb, "Areas of expertise: %s.\n", p.Expertise)
	sb.WriteString("Use the provided context and conversation history when relevant.")
	return sb.String()
}

// merge fills blank fields of p from def.
func (p *Persona) merge(def *Persona) {
	pick := func(v *string, fallback string) {
		if strings.TrimSpace(*v) == "" {
			*v = fallback
		} else {
			*v = strings.TrimSpace(*v)
		}
	}
	pick(&p.Name, def.Name)
	pick(&p.Personality, def.Personality)
	pick(&p.ResponseStyle, def.ResponseStyle)
	pick(&p.Humor, def.Humor)
	pick(&p.Expertise, def.Expertise)
}
