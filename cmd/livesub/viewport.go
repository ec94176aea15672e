package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/harunnryd/livesub/pkg/caption"
	"github.com/harunnryd/livesub/pkg/transcript"
	"github.com/mattn/go-isatty"
)

const (
	ansiClearLine = "\r\033[K"
	ansiDim       = "\033[2m"
	ansiReset     = "\033[0m"
)

// terminalViewport prints finalized lines as they arrive. On a terminal the
// live (interim) text is redrawn in place below the last line; elsewhere it
// is dropped so piped output holds only finalized captions.
type terminalViewport struct {
	mu   sync.Mutex
	out  io.Writer
	tty  bool
	live string
}

func newTerminalViewport(out io.Writer) *terminalViewport {
	return &terminalViewport{out: out, tty: isTerminal(out)}
}

// AtBottom is always true; the terminal follows its own output.
func (v *terminalViewport) AtBottom() bool { return true }

func (v *terminalViewport) Render(line caption.Line) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tty && v.live != "" {
		fmt.Fprint(v.out, ansiClearLine)
	}
	fmt.Fprintln(v.out, line.Text)
	v.live = ""
}

func (v *terminalViewport) Evict(int) {}

func (v *terminalViewport) ScrollToBottom() {}

func (v *terminalViewport) SetLive(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.live = text
	if !v.tty {
		return
	}
	fmt.Fprint(v.out, ansiClearLine)
	if text != "" {
		fmt.Fprint(v.out, ansiDim+text+ansiReset)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var _ transcript.Viewport = (*terminalViewport)(nil)
