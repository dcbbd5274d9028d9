// Package script defines the narration script exchanged between the language
// model and the speech synthesizer, and the generator that produces it.
package script

import (
	"errors"
	"fmt"
	"strings"
)

// Turn is one speaker's line.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Script is an ordered list of speaker turns with an optional title.
type Script struct {
	Title string `json:"title,omitempty"`
	Turns []Turn `json:"turns"`
}

// Speakers returns distinct speaker names in order of first appearance.
func (s Script) Speakers() []string {
	seen := make(map[string]struct{}, 2)
	var out []string
	for _, turn := range s.Turns {
		name := strings.TrimSpace(turn.Speaker)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// WordCount sums whitespace-separated words across all turns.
func (s Script) WordCount() int {
	total := 0
	for _, turn := range s.Turns {
		total += len(strings.Fields(turn.Text))
	}
	return total
}

// Transcript renders the script as "Speaker: text" lines.
func (s Script) Transcript() string {
	var b strings.Builder
	for i, turn := range s.Turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		if turn.Speaker != "" {
			b.WriteString(turn.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(turn.Text)
	}
	return b.String()
}

// Validate rejects scripts that cannot be voiced.
func (s Script) Validate() error {
	if len(s.Turns) == 0 {
		return errors.New("script has no turns")
	}
	for i, turn := range s.Turns {
		if strings.TrimSpace(turn.Text) == "" {
			return fmt.Errorf("turn %d has no text", i+1)
		}
	}
	return nil
}

// normalize trims every field and fills unnamed speakers.
func (s Script) normalize() Script {
	out := Script{Title: strings.TrimSpace(s.Title), Turns: make([]Turn, 0, len(s.Turns))}
	for _, turn := range s.Turns {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		speaker := strings.TrimSpace(turn.Speaker)
		if speaker == "" {
			speaker = DefaultHost
		}
		out.Turns = append(out.Turns, Turn{Speaker: speaker, Text: text})
	}
	return out
}
