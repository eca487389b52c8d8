// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logfilter reduces a window of parsed executor log lines into a
// short list of human-readable bullets. It is a pure, deterministic
// function with no network calls and no hidden state.
package logfilter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wingedpig/codewalk/internal/logmonitor"
)

// Budgets caps the character length of each bullet category.
type Budgets struct {
	User      int
	Assistant int
	Error     int
}

// DefaultBudgets matches the reference character limits.
var DefaultBudgets = Budgets{User: 200, Assistant: 150, Error: 100}

// Summarize reduces lines into an ordered list of bullets, applying
// DefaultBudgets.
func Summarize(lines []logmonitor.ParsedLogLine) []string {
	return SummarizeWithBudgets(lines, DefaultBudgets)
}

// SummarizeWithBudgets is Summarize with caller-supplied character budgets.
func SummarizeWithBudgets(lines []logmonitor.ParsedLogLine, budgets Budgets) []string {
	var bullets []string

	for _, l := range lines {
		switch l.Type {
		case logmonitor.LogUserMessage:
			if text := firstTextFragment(l.Content); text != "" {
				bullets = append(bullets, truncate("> "+text, budgets.User))
			}
		case logmonitor.LogAssistantMessage:
			if text := firstTextFragment(l.Content); text != "" {
				bullets = append(bullets, truncate(text, budgets.Assistant))
			}
		case logmonitor.LogToolCall:
			bullets = append(bullets, toolCallBullet(l.Content))
		case logmonitor.LogToolResult:
			bullets = append(bullets, toolResultBullet(l.Content, budgets.Error))
		case logmonitor.LogError:
			if text := firstTextFragment(l.Content); text != "" {
				bullets = append(bullets, truncate("error: "+text, budgets.Error))
			} else {
				bullets = append(bullets, "error: (unspecified)")
			}
		case logmonitor.LogStatus:
			if text := firstTextFragment(l.Content); text != "" {
				bullets = append(bullets, truncate(text, budgets.Assistant))
			}
		}
	}

	return bullets
}

// firstTextFragment extracts the first plain-text fragment from a message
// record shaped like `{"content": "..."}` or `{"content": [{"type":"text",
// "text": "..."}]}` (the widely used assistant/user content-block shape).
func firstTextFragment(content map[string]any) string {
	raw, ok := content["content"]
	if !ok {
		return ""
	}

	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		for _, item := range v {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := block["type"].(string); t == "text" || t == "" {
				if text, ok := block["text"].(string); ok {
					return strings.TrimSpace(text)
				}
			}
		}
	}
	return ""
}

func toolCallBullet(content map[string]any) string {
	name, _ := content["name"].(string)
	if name == "" {
		name, _ = content["tool_name"].(string)
	}
	if name == "" {
		name = "tool"
	}
	arg := salientArg(name, content)
	if arg == "" {
		return fmt.Sprintf("used %s", name)
	}
	return fmt.Sprintf("used %s: %s", name, arg)
}

// salientArg extracts the single most useful argument for a tool call: the
// basename of a path-shaped argument, or the first ~50 chars of a command.
func salientArg(name string, content map[string]any) string {
	input, _ := content["input"].(map[string]any)
	if input == nil {
		return ""
	}

	for _, key := range []string{"file_path", "path", "notebook_path"} {
		if p, ok := input[key].(string); ok && p != "" {
			return filepath.Base(p)
		}
	}
	if cmd, ok := input["command"].(string); ok && cmd != "" {
		return truncate(cmd, 50)
	}
	if pattern, ok := input["pattern"].(string); ok && pattern != "" {
		return truncate(pattern, 50)
	}
	return ""
}

// toolResultBullet condenses a result record to its first line, a line
// count ("result: N lines") for multi-line output, or an error excerpt.
func toolResultBullet(content map[string]any, errBudget int) string {
	if isErr, _ := content["is_error"].(bool); isErr {
		if text := firstTextFragment(content); text != "" {
			return truncate("tool error: "+text, errBudget)
		}
		return "tool error"
	}

	text := firstTextFragment(content)
	if text == "" {
		return "tool result"
	}
	if n := countLines(text); n > 1 {
		return fmt.Sprintf("result: %d lines", n)
	}
	firstLine := strings.SplitN(text, "\n", 2)[0]
	return truncate(firstLine, 150)
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func truncate(s string, budget int) string {
	if budget <= 0 || len(s) <= budget {
		return s
	}
	if budget <= 3 {
		return s[:budget]
	}
	return s[:budget-3] + "..."
}
