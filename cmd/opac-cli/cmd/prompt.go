package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"opacbridge/cmd/opac-cli/utils"
	"opacbridge/internal/opac"
	"opacbridge/internal/workflow"

	"github.com/jedib0t/go-pretty/v6/table"
)

// terminalCallbacks answers workflow questions on the terminal, readLine is
// swapped out in tests.
type terminalCallbacks struct {
	out      io.Writer
	readLine func(prompt string) (string, error)
}

var _ workflow.Callbacks = terminalCallbacks{}

func newTerminalCallbacks(out io.Writer) terminalCallbacks {
	return terminalCallbacks{out: out, readLine: utils.ReadLine}
}

// pickOption accepts the number shown in front of an option or its key.
func pickOption(options []opac.Option, answer string) (string, bool) {
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
		return options[n-1].Key, true
	}
	for _, o := range options {
		if o.Key == answer {
			return o.Key, true
		}
	}
	return "", false
}

func (c terminalCallbacks) OnNeedsSelection(ctx context.Context, prompt string, options []opac.Option, action opac.ActionID) workflow.Answer {
	if prompt == "" {
		prompt = "Please choose"
	}
	fmt.Fprintln(c.out, prompt+":")
	for i, o := range options {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, o.Label)
	}
	answer, err := c.readLine("choice (empty to cancel): ")
	if err != nil || answer == "" {
		return workflow.Answer{Cancel: true}
	}
	key, ok := pickOption(options, answer)
	if !ok {
		// passed through so that the workflow counts the invalid answer
		return workflow.Answer{Value: answer}
	}
	return workflow.Answer{Value: key}
}

func (c terminalCallbacks) OnNeedsConfirmation(ctx context.Context, details []opac.Detail, action opac.ActionID) workflow.Answer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(c.out)
	for _, d := range details {
		t.AppendRow(table.Row{d.Label, d.Value})
	}
	if len(details) > 0 {
		t.Render()
	}
	answer, err := c.readLine("continue? [y/N] ")
	if err != nil {
		return workflow.Answer{Cancel: true}
	}
	switch strings.ToLower(answer) {
	case "y", "yes", "j", "ja":
		return workflow.Answer{}
	}
	return workflow.Answer{Cancel: true}
}

func (c terminalCallbacks) OnSucceeded(message string) {
	if message == "" {
		message = "done"
	}
	fmt.Fprintln(c.out, message)
}

func (c terminalCallbacks) OnFailed(message string) {
	fmt.Fprintln(c.out, "failed: "+message)
}

func (c terminalCallbacks) OnCancelled() {
	fmt.Fprintln(c.out, "cancelled")
}
