package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/metalagman/taskgraph/internal/task"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle = map[task.Status]lipgloss.Style{
		task.StatusPending:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		task.StatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		task.StatusCanceled:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Strikethrough(true),
	}
)

func renderStatus(s task.Status) string {
	style, ok := statusStyle[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}

// write emits v as JSON or YAML, or calls text for the human format.
func write(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch strings.ToLower(format) {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case formatText, "":
		return text(w)
	}
	return fmt.Errorf("unknown format %q: use text, json or yaml", format)
}

func writeTaskLine(w io.Writer, v task.View) {
	line := fmt.Sprintf("%-5d %-10s %s", v.ID, renderStatus(v.Status), v.Title)
	if v.DueDate != "" {
		line += " " + mutedStyle.Render("due "+v.DueDate)
	}
	fmt.Fprintln(w, line)
}

// renderMarkdown renders a description for the terminal. Plain output is used
// when stdout is not a terminal.
func renderMarkdown(md string) string {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(80)}
	if isTerminal(os.Stdout) {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle("notty"))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
