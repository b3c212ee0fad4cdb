package model

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Task documents are markdown files with a YAML frontmatter block: the
// structured task fields live between the --- fences and the free-form body
// follows. The format keeps documents editable by hand and by the dashboard.

const frontmatterFence = "---"

// MarshalDocument renders a task as a markdown document.
func MarshalDocument(t *Task) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot marshal nil task")
	}
	meta, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(frontmatterFence + "\n")
	buf.Write(meta)
	buf.WriteString(frontmatterFence + "\n")
	if t.Content != "" {
		buf.WriteString("\n")
		buf.WriteString(t.Content)
		if !strings.HasSuffix(t.Content, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalDocument parses a markdown task document produced by
// MarshalDocument (or edited externally, e.g. a decision written into the
// frontmatter by the dashboard).
func UnmarshalDocument(data []byte) (*Task, error) {
	text := string(data)
	if !strings.HasPrefix(text, frontmatterFence) {
		return nil, fmt.Errorf("task document missing frontmatter")
	}
	rest := text[len(frontmatterFence):]
	idx := strings.Index(rest, "\n"+frontmatterFence)
	if idx == -1 {
		return nil, fmt.Errorf("task document frontmatter not terminated")
	}
	meta := rest[:idx]
	body := rest[idx+len(frontmatterFence)+1:]

	task := &Task{}
	if err := yaml.Unmarshal([]byte(meta), task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task frontmatter: %w", err)
	}
	if task.ID == "" {
		return nil, fmt.Errorf("task document has no id")
	}
	task.Content = strings.TrimPrefix(strings.TrimPrefix(body, "\n"), "\n")
	return task, nil
}
