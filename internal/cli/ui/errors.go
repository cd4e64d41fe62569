package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a formatted status message with optional suggestions and hints
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// Format renders the message.
//
//	✗ COLLECTION NOT FOUND: no collection named "taks"
//
//	   Did you mean: tasks?
//
//	   → List collections: docmap schema validate
func (m Message) Format() string {
	var b strings.Builder

	var header *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		header = color.New(color.FgYellow, color.Bold)
		symbol = "!"
	case LevelInfo:
		header = color.New(color.FgCyan, color.Bold)
		symbol = "i"
	default:
		header = color.New(color.FgRed, color.Bold)
		symbol = "✗"
	}
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if m.NoColor {
		header.DisableColor()
		yellow.DisableColor()
		cyan.DisableColor()
	}

	if m.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}

	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.Hints) > 0 {
		b.WriteString("\n")
		for _, hint := range m.Hints {
			cyan.Fprintf(&b, "   → %s\n", hint)
		}
	}

	return b.String()
}

// Write writes the formatted message
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.Format())
}

// CollectionNotFound describes an unknown collection name
func CollectionNotFound(name string, known []string, noColor bool) Message {
	return Message{
		Level:       LevelError,
		Context:     "collection not found",
		Problem:     fmt.Sprintf("no collection named %q", name),
		Suggestions: Suggest(name, known),
		Hints:       []string{"List collections: docmap schema validate"},
		NoColor:     noColor,
	}
}

// Warning creates a warning message
func Warning(problem string, noColor bool) Message {
	return Message{Level: LevelWarning, Problem: problem, NoColor: noColor}
}

// Success formats a success line
func Success(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success line
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, Success(message, noColor))
}
