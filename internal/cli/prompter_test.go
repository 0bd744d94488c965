package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "  yes  \n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "maybe\n", want: false},
		{input: "y", want: true},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			prompter := NewCLIPrompter(strings.NewReader(tt.input), &out)

			got, err := prompter.Confirm(context.Background(), "Delete rule 3?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Delete rule 3? [y/N]")
		})
	}
}

func TestPrompter_Ask(t *testing.T) {
	var out bytes.Buffer
	prompter := NewCLIPrompter(strings.NewReader("\nOffice Supplies\n"), &out)
	ctx := context.Background()

	got, err := prompter.Ask(ctx, "Account", "Miscellaneous")
	require.NoError(t, err)
	assert.Equal(t, "Miscellaneous", got, "empty answer keeps the default")

	got, err = prompter.Ask(ctx, "Account", "Miscellaneous")
	require.NoError(t, err)
	assert.Equal(t, "Office Supplies", got)

	assert.Contains(t, out.String(), "Account")

	_, err = prompter.Ask(ctx, "Account", "")
	assert.ErrorIs(t, err, io.EOF)
	_, err = prompter.Ask(ctx, "Account", "")
	assert.ErrorIs(t, err, io.EOF, "end of input is sticky")
}

func TestPrompter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCLIPrompter(blockingReader{}, &bytes.Buffer{}).Confirm(ctx, "Continue?")
	assert.ErrorIs(t, err, ErrInputCancelled)
}

func TestPrompter_CancelledPromptKeepsNextAnswer(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()
	prompter := NewCLIPrompter(pr, &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := prompter.Ask(ctx, "Name", "")
	require.ErrorIs(t, err, ErrInputCancelled)

	go func() { _, _ = io.WriteString(pw, "Coffee\n") }()
	got, err := prompter.Ask(context.Background(), "Name", "")
	require.NoError(t, err)
	assert.Equal(t, "Coffee", got)
}

// blockingReader never returns, like an idle terminal.
type blockingReader struct{}

func (blockingReader) Read(_ []byte) (int, error) {
	select {}
}
