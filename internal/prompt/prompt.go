// Package prompt provides the blocking yes/no confirmation used before
// deleting a file outside force mode.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"volume-sage/internal/styles"
)

// ErrNoAnswer is returned when input ends before the operator answered
var ErrNoAnswer = errors.New("no answer: input closed")

// Confirmer asks the operator a yes/no question. Implementations return
// ctx.Err() once ctx is done, even while waiting for input.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

type readResult struct {
	line string
	err  error
}

// Terminal reads answers line by line. It has no timeout: Confirm blocks
// until a line arrives, the input is closed or ctx is cancelled.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer

	// pending holds the read still in flight after a cancelled Confirm, so
	// a later call picks up its line instead of starting a second reader
	pending chan readResult
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// Confirm writes "question [y/N]: " and waits for an answer.
// An empty answer means no; unrecognised answers re-ask.
func (t *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(t.out, "%s %s ", question, styles.Render(&styles.Dimmed, "[y/N]:"))

		line, err := t.readLine(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintln(t.out)
			return false, err
		}
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(t.out)
				return false, ErrNoAnswer
			}
			return false, fmt.Errorf("read answer: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		default:
			fmt.Fprintln(t.out, styles.Render(&styles.Error, "Error: invalid input"))
		}
	}
}

// readLine reads one line in a goroutine so that cancellation does not
// have to wait for the operator
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	if t.pending == nil {
		ch := make(chan readResult, 1)
		go func() {
			line, err := t.in.ReadString('\n')
			ch <- readResult{line: line, err: err}
		}()
		t.pending = ch
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-t.pending:
		t.pending = nil
		return r.line, r.err
	}
}

// Always answers every question the same way
type Always bool

func (a Always) Confirm(ctx context.Context, _ string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return bool(a), nil
}

// Scripted replays a fixed list of answers and records the questions asked.
// Once the answers run out it behaves like closed input.
type Scripted struct {
	Answers   []bool
	Questions []string
}

func (s *Scripted) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.Questions = append(s.Questions, question)
	if len(s.Answers) == 0 {
		return false, ErrNoAnswer
	}
	answer := s.Answers[0]
	s.Answers = s.Answers[1:]
	return answer, nil
}

// IsInteractive reports whether f is attached to a terminal
func IsInteractive(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
