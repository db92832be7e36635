package progress

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

const barWidth = 30

var (
	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	fallbackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Terminal draws a single status line. On a TTY the line is rewritten in place; elsewhere a
// plain line is printed every tenth of the run so logs stay readable.
type Terminal struct {
	w          io.Writer
	rewrite    bool
	fallbacks  int
	lastDecile int
}

func NewTerminal(w io.Writer) *Terminal {
	rewrite := false
	if f, ok := w.(*os.File); ok {
		rewrite = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Terminal{w: w, rewrite: rewrite, lastDecile: -1}
}

func (t *Terminal) Observe(e Event) {
	if e.Total <= 0 {
		return
	}
	if e.Fallback {
		t.fallbacks++
	}
	if t.rewrite {
		fmt.Fprintf(t.w, "\r\033[K%s", t.line(e))
		if e.Completed >= e.Total {
			fmt.Fprintln(t.w)
		}
		return
	}
	decile := e.Completed * 10 / e.Total
	if decile == t.lastDecile && e.Completed < e.Total {
		return
	}
	t.lastDecile = decile
	fmt.Fprintln(t.w, t.line(e))
}

func (t *Terminal) line(e Event) string {
	filled := e.Completed * barWidth / e.Total
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)
	if t.rewrite {
		bar = barStyle.Render(bar)
	}
	out := fmt.Sprintf("%s [%s] %d/%d", e.Strategy, bar, e.Completed, e.Total)
	if t.fallbacks > 0 {
		note := fmt.Sprintf(" (%d fallback)", t.fallbacks)
		if t.rewrite {
			note = fallbackStyle.Render(note)
		}
		out += note
	}
	return out
}
