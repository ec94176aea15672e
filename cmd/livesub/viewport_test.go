package main

import (
	"bytes"
	"testing"

	"github.com/harunnryd/livesub/pkg/caption"
)

func TestTerminalViewportOnPipe(t *testing.T) {
	var buf bytes.Buffer
	v := newTerminalViewport(&buf)
	v.SetLive("photo")
	v.Render(caption.Line{Seq: 1, Text: "photosynthesis"})
	if buf.String() != "photosynthesis\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestTerminalViewportRedrawsLive(t *testing.T) {
	var buf bytes.Buffer
	v := &terminalViewport{out: &buf, tty: true}
	v.SetLive("photo")
	v.Render(caption.Line{Seq: 1, Text: "photosynthesis"})
	want := ansiClearLine + ansiDim + "photo" + ansiReset + ansiClearLine + "photosynthesis\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestWordsOf(t *testing.T) {
	got := wordsOf("Hello, World!")
	if len(got) != 2 || got[0] != "hello" || got[1] != "world" {
		t.Fatalf("unexpected words %v", got)
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Word", "Translation"}, [][]string{{"cat"}}, []columnAlignment{alignLeft, alignRight})
	if !bytes.Contains([]byte(out), []byte("cat")) || !bytes.Contains([]byte(out), []byte("Translation")) {
		t.Fatalf("unexpected table %q", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatalf("expected empty table without headers")
	}
}
