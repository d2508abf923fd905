package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_TypeAndReadLine(t *testing.T) {
	t.Parallel()

	b := NewBuffer()
	b.Append("user@r-os:/$ ")
	b.Type("ls -a")
	b.Type("mkdir /docs\nexists /docs\n")

	assert.Equal(t, "user@r-os:/$ ls -a\nmkdir /docs\nexists /docs\n", b.ReadAll())
	assert.Equal(t, 3, b.Pending())

	for _, want := range []string{"ls -a", "mkdir /docs", "exists /docs"} {
		line, ok := b.ReadLine()
		require.True(t, ok)
		assert.Equal(t, want, line)
	}
	_, ok := b.ReadLine()
	assert.False(t, ok)
	assert.Equal(t, 0, b.Pending())
}

func TestBuffer_Clear(t *testing.T) {
	t.Parallel()

	b := NewBuffer()
	b.Append("hello")
	b.Clear()
	assert.Empty(t, b.ReadAll())
}

func TestBuffer_Feed(t *testing.T) {
	t.Parallel()

	b := NewBuffer()
	err := b.Feed(context.Background(), strings.NewReader("help\r\necho hi\ntime"))
	require.NoError(t, err)

	var got []string
	for {
		line, ok := b.ReadLine()
		if !ok {
			break
		}
		got = append(got, line)
	}
	assert.Equal(t, []string{"help", "echo hi", "time"}, got)
}

func TestBuffer_FeedCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewBuffer().Feed(ctx, strings.NewReader(""))
	// either the reader finished first or the context won; neither is a failure
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestTerminal_MirrorsOutput(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	term := NewTerminal(&out)
	term.Append("prompt$ ")
	term.Type("ls")
	term.Append("/docs\n")
	term.Clear()

	assert.Equal(t, "prompt$ /docs\n"+clearScreen, out.String())
	assert.Empty(t, term.ReadAll())

	line, ok := term.ReadLine()
	require.True(t, ok)
	assert.Equal(t, "ls", line)
}
