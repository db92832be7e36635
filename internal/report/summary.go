// Package report renders a finished ranking for people: a terminal table, run statistics, a
// spreadsheet export and chat notifications.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"issuerank/internal/domain"
	"issuerank/internal/ranking"
)

const (
	tableWidth = 140
	unknown    = "UNKNOWN"
)

var titles = map[string]string{
	ranking.NameBubble: "Bubble Sort Issues Summary",
	ranking.NameElo:    "Elo Issues Summary",
	ranking.NameScore:  "Scored Issues Summary",
}

// Title is the table heading for a strategy.
func Title(strategy string) string {
	if t, ok := titles[strategy]; ok {
		return t
	}
	return "Issues Summary"
}

// WriteSummary prints the ranked table for items as produced by strategy.
func WriteSummary(w io.Writer, strategy string, items []domain.Item, runtime time.Duration) error {
	r := lipgloss.NewRenderer(w)
	heading := r.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

	titleWidth := tableWidth - 30
	valueHeader := ""
	switch strategy {
	case ranking.NameElo:
		titleWidth, valueHeader = tableWidth-45, "Elo"
	case ranking.NameScore:
		titleWidth, valueHeader = tableWidth-45, "Score"
	}

	var b strings.Builder
	b.WriteString("\n" + heading.Render(Title(strategy)+":") + "\n")
	b.WriteString(strings.Repeat("=", tableWidth) + "\n")
	b.WriteString(row("Rank", valueHeader, strategy, "Severity", "Type", "Title/Message") + "\n")
	b.WriteString(strings.Repeat("-", tableWidth) + "\n")
	for i, it := range items {
		b.WriteString(row(fmt.Sprint(i+1), value(strategy, it), strategy, severity(it), strings.ToUpper(it.Type()), truncate(it.Title(), titleWidth)) + "\n")
	}
	b.WriteString(strings.Repeat("=", tableWidth) + "\n")
	verb := "prioritized"
	if strategy == ranking.NameScore {
		verb = "scored"
	}
	fmt.Fprintf(&b, "Total issues %s: %d\n", verb, len(items))
	fmt.Fprintf(&b, "Total runtime: %.2f seconds\n", runtime.Seconds())

	_, err := io.WriteString(w, b.String())
	return err
}

func row(rank, val, strategy, sev, typ, title string) string {
	var line string
	switch strategy {
	case ranking.NameElo:
		line = fmt.Sprintf("%-6s %-8s %-10s %-15s %s", rank, val, sev, typ, title)
	case ranking.NameScore:
		line = fmt.Sprintf("%-6s %-6s %-10s %-15s %s", rank, val, sev, typ, title)
	default:
		line = fmt.Sprintf("%-6s %-10s %-15s %s", rank, sev, typ, title)
	}
	return strings.TrimRight(line, " ")
}

func value(strategy string, it domain.Item) string {
	switch strategy {
	case ranking.NameElo:
		if r, ok := it.Rating(); ok {
			return fmt.Sprintf("%.0f", r)
		}
	case ranking.NameScore:
		if s, ok := it.Score(); ok {
			return fmt.Sprint(s)
		}
	}
	return "-"
}

func severity(it domain.Item) string {
	if l := it.SeverityLabel(); l != "" {
		return l
	}
	return unknown
}

// truncate shortens s to fit width, ending in "..." when cut.
func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width-3 {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-6]) + "..."
}
