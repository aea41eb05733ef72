// Package output provides terminal output utilities for dirwatcher.
//
// This package includes:
//   - Table rendering for recorded matches and watch runs
//   - A spinner for daemon start/stop
//   - Human-readable formatting for times and durations
//
// Tables use box-drawing rules and, when enabled, fatih/color highlighting.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/dirwatcher/internal/store"
)

var (
	termColor  = color.New(color.FgRed, color.Bold)
	fileColor  = color.New(color.FgCyan)
	activeRun  = color.New(color.FgGreen)
	stoppedRun = color.New(color.FgHiBlack)
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func paint(c *color.Color, enabled bool, s string) string {
	if !enabled {
		return s
	}
	c.EnableColor()
	return c.Sprint(s)
}

// RenderMatchTable renders recorded matches in the order given. When
// colorize is true the search term is highlighted inside each line.
func RenderMatchTable(matches []*store.Match, colorize bool) string {
	if len(matches) == 0 {
		return "No matches recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-13s %-24s %6s  %s\n", "Found", "File", "Line", "Text"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, m := range matches {
		file := fmt.Sprintf("%-24s", truncate(m.FileName, 24))
		text := truncate(strings.TrimSpace(m.Text), 60)
		if colorize && m.Term != "" {
			text = strings.ReplaceAll(text, m.Term, paint(termColor, true, m.Term))
		}

		sb.WriteString(fmt.Sprintf("%-13s %s %6d  %s\n",
			formatRelativeTime(m.FoundAt),
			paint(fileColor, colorize, file),
			m.Line,
			text))
	}

	return sb.String()
}

// RenderRunTable renders watch runs in the order given.
func RenderRunTable(runs []*store.Run, colorize bool) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-8s %-13s %-10s %-8s %7s %7s  %s\n",
		"Run", "Started", "Duration", "Status", "Cycles", "Matches", "Watching"))
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	for _, r := range runs {
		status := fmt.Sprintf("%-8s", "active")
		duration := "—"
		if !r.StoppedAt.IsZero() {
			status = paint(stoppedRun, colorize, fmt.Sprintf("%-8s", "stopped"))
			duration = formatDuration(r.StoppedAt.Sub(r.StartedAt))
		} else {
			status = paint(activeRun, colorize, status)
		}

		watching := fmt.Sprintf("%s/*%s %q", r.Dir, r.Ext, r.Term)

		sb.WriteString(fmt.Sprintf("%-8s %-13s %-10s %s %7d %7d  %s\n",
			shortID(r.ID),
			formatRelativeTime(r.StartedAt),
			duration,
			status,
			r.Cycles,
			r.Matches,
			truncate(watching, 40)))
	}

	return sb.String()
}

// shortID returns the first block of a UUID-style identifier.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return truncate(id, 8)
}

// formatDuration renders d with second precision, e.g. "1h2m3s".
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	return d.Truncate(time.Second).String()
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / 24 / 7)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	default:
		months := int(diff.Hours() / 24 / 30)
		if months <= 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	}
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
