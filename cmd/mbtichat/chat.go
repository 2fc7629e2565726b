package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/20223096/mbti-app/internal/conversation"
	"github.com/20223096/mbti-app/internal/pipeline"
	"github.com/20223096/mbti-app/internal/traits"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation.

Type a message and press enter. Commands:
  /1 /2 /3   send the numbered suggestion
  /profile   print the current traits profile
  /reset     clear the conversation and the stored profile
  /quit      leave

With --ephemeral the profile lives only in memory and no history is kept.

Example:
  mbtichat chat --mbti ISTP --relationship-type romantic_interest --relationship-state exploring`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.pipe.SetSelection(selectionFromFlags(cmd)); err != nil {
			return err
		}

		r := &repl{session: a.pipe, in: os.Stdin, out: cmd.OutOrStdout()}
		return r.run(cmd.Context())
	},
}

func init() {
	addSelectionFlags(chatCmd)
	addEphemeralFlag(chatCmd)
}

// chatSession is the pipeline surface the REPL drives.
type chatSession interface {
	Submit(ctx context.Context, text string) (pipeline.TurnResult, error)
	Reset() error
	Messages() []conversation.Turn
	Profile() *traits.Profile
}

type repl struct {
	session chatSession
	in      io.Reader
	out     io.Writer

	// suggestions offered by the last assistant turn, addressable as /1../3.
	suggestions []string
}

const replPrompt = "> "

func (r *repl) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, t := range r.session.Messages() {
		writeTurn(r.out, t)
	}

	scanner := bufio.NewScanner(r.in)
	fmt.Fprint(r.out, replPrompt)
	for scanner.Scan() {
		quit, err := r.handle(ctx, scanner.Text())
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
		fmt.Fprint(r.out, replPrompt)
	}
	fmt.Fprintln(r.out)
	return scanner.Err()
}

// handle processes one input line. It reports quit=true when the user asked
// to leave.
func (r *repl) handle(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false, nil
	case line == "/quit" || line == "/exit":
		return true, nil
	case line == "/reset":
		if err := r.session.Reset(); err != nil {
			return false, err
		}
		r.suggestions = nil
		for _, t := range r.session.Messages() {
			writeTurn(r.out, t)
		}
		return false, nil
	case line == "/profile":
		p := r.session.Profile()
		if p == nil {
			fmt.Fprintln(r.out, "No traits profile yet. Start with --mbti to create one.")
			return false, nil
		}
		return false, writeProfile(r.out, p, "json")
	case strings.HasPrefix(line, "/"):
		n, convErr := strconv.Atoi(line[1:])
		if convErr != nil || n < 1 || n > len(r.suggestions) {
			fmt.Fprintf(r.out, "unknown command %q\n", line)
			return false, nil
		}
		return false, r.submit(ctx, r.suggestions[n-1])
	default:
		return false, r.submit(ctx, line)
	}
}

func (r *repl) submit(ctx context.Context, text string) error {
	res, err := r.session.Submit(ctx, text)
	if errors.Is(err, pipeline.ErrEmptyMessage) {
		return nil
	}
	if err != nil {
		return err
	}
	writeTurn(r.out, res.Reply)
	r.suggestions = res.Reply.Suggestions
	return nil
}
