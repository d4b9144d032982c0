package output

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_BufferIsPlain(t *testing.T) {
	// Given: a non-terminal writer
	buf := &bytes.Buffer{}

	// When
	w := New(buf)

	// Then: no ANSI styling is used
	assert.False(t, w.Colored())
	w.Header("Documents")
	assert.Equal(t, "Documents\n", buf.String())
}

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "out")
	assert.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTTY(f), "regular files are not terminals")
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestWriter_StatusLines(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"success", func(w *Writer) { w.Success("Index complete") }, "✓ Index complete\n"},
		{"successf", func(w *Writer) { w.Successf("%d added", 3) }, "✓ 3 added\n"},
		{"warning", func(w *Writer) { w.Warningf("skipped %s", "a.exe") }, "! skipped a.exe\n"},
		{"error", func(w *Writer) { w.Error("Failed to connect") }, "✗ Failed to connect\n"},
		{"errorf", func(w *Writer) { w.Errorf("code %d", 7) }, "✗ code 7\n"},
		{"status without icon", func(w *Writer) { w.Status("", "indented") }, "   indented\n"},
		{"statusf", func(w *Writer) { w.Statusf(">", "%s!", "go") }, "> go!\n"},
		{"dim", func(w *Writer) { w.Dim("hint") }, "hint\n"},
		{"println", func(w *Writer) { w.Println("plain") }, "plain\n"},
		{"newline", func(w *Writer) { w.Newline() }, "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(NewWithColor(buf, false))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_KeyValue_AlignsLabels(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)

	w.KeyValue("Documents", "3", "Chunks", "12", "dangling")

	assert.Equal(t, "  Documents: 3\n  Chunks:    12\n", buf.String())
}

func TestWriter_Code_IndentsLines(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)

	w.Code("line1\nline2")

	assert.Equal(t, "\n  line1\n  line2\n\n", buf.String())
}

func TestWriter_ColoredOutputIsStyled(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, true)

	w.Success("done")

	assert.True(t, w.Colored())
	assert.Contains(t, buf.String(), "done")
	assert.Contains(t, buf.String(), "✓")
}

func TestWriter_Progress(t *testing.T) {
	t.Run("plain prints only completion", func(t *testing.T) {
		buf := &bytes.Buffer{}
		w := NewWithColor(buf, false)

		w.Progress(1, 4, "a.txt")
		w.Progress(4, 4, "done")

		assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
		assert.Contains(t, buf.String(), "100% done")
		assert.NotContains(t, buf.String(), "a.txt")
	})

	t.Run("terminal redraws in place", func(t *testing.T) {
		buf := &bytes.Buffer{}
		w := NewWithColor(buf, true)

		w.Progress(1, 2, "half")

		assert.True(t, strings.HasPrefix(buf.String(), "\r["))
		assert.Contains(t, buf.String(), "50% half")
		assert.False(t, strings.HasSuffix(buf.String(), "\n"))
	})

	t.Run("zero total is ignored", func(t *testing.T) {
		buf := &bytes.Buffer{}
		NewWithColor(buf, true).Progress(0, 0, "x")
		assert.Empty(t, buf.String())
	})
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		name           string
		current, total int
		want           string
	}{
		{"empty", 0, 10, "░░░░░░░░░░"},
		{"half", 5, 10, "█████░░░░░"},
		{"full", 10, 10, "██████████"},
		{"overflow clamps", 20, 10, "██████████"},
		{"negative clamps", -1, 10, "░░░░░░░░░░"},
		{"zero total", 3, 0, "░░░░░░░░░░"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderProgressBar(tt.current, tt.total, 10))
		})
	}
}
