package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when a prompt is abandoned by its context.
var ErrInputCancelled = errors.New("input canceled")

type inputLine struct {
	err  error
	text string
}

// Prompter asks the operator short questions on a terminal. Input is read
// by a single goroutine so a canceled prompt never loses the next answer.
type Prompter struct {
	writer io.Writer
	reader io.Reader
	lines  chan inputLine
	start  sync.Once
}

// NewCLIPrompter creates a prompter; nil reader and writer default to stdin and stdout.
func NewCLIPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{reader: reader, writer: writer, lines: make(chan inputLine)}
}

func (p *Prompter) pump() {
	scanner := bufio.NewScanner(p.reader)
	for scanner.Scan() {
		p.lines <- inputLine{text: scanner.Text()}
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	for {
		p.lines <- inputLine{err: err}
	}
}

func (p *Prompter) readLine(ctx context.Context) (string, error) {
	p.start.Do(func() { go p.pump() })

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case l := <-p.lines:
		if l.err != nil {
			return "", l.err
		}
		return strings.TrimSpace(l.text), nil
	}
}

// Confirm asks a yes/no question. Anything but y or yes is a no.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	if _, err := fmt.Fprint(p.writer, FormatPrompt(question+" [y/N]")); err != nil {
		return false, err
	}

	answer, err := p.readLine(ctx)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Ask prompts for a value, returning def when the answer is empty.
func (p *Prompter) Ask(ctx context.Context, label, def string) (string, error) {
	prompt := label
	if def != "" {
		prompt += " " + SubtleStyle.Render("["+def+"]")
	}
	if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
		return "", err
	}

	answer, err := p.readLine(ctx)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}
