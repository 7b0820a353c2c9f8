package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/cpw/indexer/internal/placer"
	"github.com/cpw/indexer/internal/rebuild"
)

// Summary renders a rebuild summary as a bordered block.
func Summary(s *rebuild.Summary) string {
	title := "Rebuild complete"
	if s.DryRun {
		title = "Dry run"
	}

	rows := []string{
		TitleStyle.Render(title) + "  " + MutedStyle.Render(s.RunID),
		row("artifacts", MutedStyle.Render(s.ArtifactsRoot)),
		row("registry", MutedStyle.Render(s.RegistryPath)),
		row("records", fmt.Sprint(s.Records)),
	}

	if s.DryRun {
		rows = append(rows, row("planned", fmt.Sprint(len(s.Placements))))
	} else {
		rows = append(rows,
			row("linked", count(s.Count(placer.OutcomeLinked), SuccessStyle)),
			row("copied", count(s.Count(placer.OutcomeCopied), SuccessStyle)),
			row("already there", count(s.Count(placer.OutcomeExists), MutedStyle)),
			row("no source", count(s.Count(placer.OutcomeNoSource), MutedStyle)),
			row("missing source", count(s.Count(placer.OutcomeMissingSource), WarningStyle)),
		)
	}
	rows = append(rows, row("unknown kind", count(s.Unknown, WarningStyle)))
	if !s.DryRun {
		rows = append(rows, row("failed", count(s.Failures, ErrorStyle)))
	}
	rows = append(rows, row("duration", s.Duration.Round(time.Millisecond).String()))

	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// Plan lists the destination directory of every planned placement, one per
// line. Lines wider than width are truncated; width <= 0 disables that.
func Plan(s *rebuild.Summary, width int) string {
	var b strings.Builder
	for _, p := range s.Placements {
		line := fmt.Sprintf("%s %s %s",
			MutedStyle.Render(string(p.Record.Kind())), p.Record.Base().ID, p.DestDir)
		if width > 0 {
			line = ansi.Truncate(line, width, "…")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(label), value)
}

// count styles n only when it is non-zero.
func count(n int, style lipgloss.Style) string {
	if n == 0 {
		return MutedStyle.Render("0")
	}
	return style.Render(fmt.Sprint(n))
}
