// Package intent extracts a structured intent from raw language model
// output.
//
// The upstream text producer is untrusted: it may return clean JSON, JSON
// wrapped in markdown fences or prose, a provider envelope with the real
// payload nested in a string field, or plain natural language. Normalize
// is total over all of these. Past this boundary the rest of the system
// only ever sees the closed Final | ToolCall union, never raw maps.
package intent

import (
	"encoding/json"
	"strings"
)

// Kind discriminates the intent union.
type Kind int

const (
	// KindFinal is a terminal natural-language reply.
	KindFinal Kind = iota

	// KindToolCall requests a skill dispatch. Action may be empty when
	// the model declared a tool call but named no action; the caller
	// decides how to degrade.
	KindToolCall
)

// Intent is the normalized model output.
type Intent struct {
	Kind   Kind
	Tool   string
	Action string
	Args   map[string]any
	Reply  string
}

// wirePayload is the superset of shapes the model has been observed to
// produce. The legacy "skill" key predates the tool/action split.
type wirePayload struct {
	Type     string         `json:"type"`
	Tool     string         `json:"tool"`
	Skill    string         `json:"skill"`
	Action   string         `json:"action"`
	Args     map[string]any `json:"args"`
	Reply    string         `json:"reply"`
	Response string         `json:"response"`
}

// maxEnvelopeDepth bounds recursion into nested "response" envelopes.
const maxEnvelopeDepth = 3

// Normalize extracts an Intent from raw model text. It never fails: text
// that defeats every recovery step becomes a final reply verbatim.
//
// Recovery chain, in order:
//  1. Parse the whole text as JSON (recursing into a nested "response"
//     string that itself parses as JSON).
//  2. Strip one markdown code fence, retry.
//  3. Take the substring from the first '{' to the last '}', retry.
//  4. Treat the raw text as a plain final reply.
func Normalize(raw string) Intent {
	if it, ok := parsePayload(raw, 0); ok {
		return it
	}

	stripped := stripFence(raw)
	if stripped != raw {
		if it, ok := parsePayload(stripped, 0); ok {
			return it
		}
	}

	if window, ok := braceWindow(stripped); ok {
		if it, ok := parsePayload(window, 0); ok {
			return it
		}
	}

	return Intent{Kind: KindFinal, Reply: raw}
}

// parsePayload attempts a strict JSON parse and classification.
func parsePayload(text string, depth int) (Intent, bool) {
	text = strings.TrimSpace(text)
	if text == "" || text[0] != '{' {
		return Intent{}, false
	}

	var p wirePayload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Intent{}, false
	}

	// Provider envelope: the real payload hides in a "response" string.
	if p.Response != "" && depth < maxEnvelopeDepth {
		if inner, ok := parsePayload(p.Response, depth+1); ok {
			return inner, true
		}
	}

	return classify(p), true
}

// classify maps a parsed payload onto the canonical union, folding the
// legacy "skill" key into tool/action.
func classify(p wirePayload) Intent {
	action := p.Action
	tool := p.Tool
	if action == "" && p.Skill != "" {
		action = p.Skill
	}
	if tool == "" && p.Skill != "" {
		tool = p.Skill
	}

	isToolCall := p.Type == "tool_call" || action != "" || tool != ""
	if p.Type == "final" {
		isToolCall = false
	}

	if isToolCall {
		return Intent{
			Kind:   KindToolCall,
			Tool:   tool,
			Action: action,
			Args:   p.Args,
			Reply:  p.Reply,
		}
	}

	reply := p.Reply
	if reply == "" {
		reply = p.Response
	}
	return Intent{Kind: KindFinal, Reply: reply}
}

// stripFence removes one leading and trailing markdown code fence.
// Handles "```json\n...\n```" and bare "```" fences.
func stripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	// Drop an optional language tag on the opening fence line.
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if len(firstLine) <= 16 && !strings.ContainsAny(firstLine, "{}") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// braceWindow returns the substring from the first '{' to the last '}'.
func braceWindow(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
