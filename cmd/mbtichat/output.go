package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/20223096/mbti-app/internal/conversation"
	"github.com/20223096/mbti-app/internal/pipeline"
	"github.com/20223096/mbti-app/internal/traits"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// writeTurn prints one conversation turn followed by its numbered
// suggestions.
func writeTurn(w io.Writer, t conversation.Turn) {
	prefix := "you> "
	if t.Role == conversation.RoleAssistant {
		prefix = colorize(colorCyan, "bot> ")
	}
	fmt.Fprintf(w, "%s%s\n", prefix, t.Text)
	for i, s := range t.Suggestions {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, fmt.Sprintf("/%d", i+1)), s)
	}
}

// writeAnalysis prints the advisory summary and confidence, when present.
func writeAnalysis(w io.Writer, res pipeline.TurnResult) {
	if res.Summary == "" && res.Confidence == nil {
		return
	}
	line := res.Summary
	if res.Confidence != nil {
		line = strings.TrimSpace(fmt.Sprintf("%s (confidence %.2f)", line, *res.Confidence))
	}
	fmt.Fprintf(w, "  %s %s\n", colorize(colorYellow, "note:"), line)
}

// profileDoc fixes the field order of a profile rendered as YAML.
type profileDoc struct {
	Kind     string         `yaml:"type"`
	Base     map[string]any `yaml:"base"`
	State    map[string]any `yaml:"state"`
	Evidence []any          `yaml:"evidence"`
}

func writeProfile(w io.Writer, p *traits.Profile, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case "yaml":
		doc := profileDoc{
			Kind:     p.Kind,
			Base:     p.Base.Interface(),
			State:    p.State.Interface(),
			Evidence: make([]any, len(p.Evidence)),
		}
		for i, e := range p.Evidence {
			doc.Evidence[i] = e.Interface()
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
