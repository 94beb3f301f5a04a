package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	storagecheck "github.com/Rubilmax/foundry-storage-check"
)

// renderer writes formatted diffs to the terminal or as GitHub workflow commands.
type renderer interface {
	diff(d storagecheck.FormattedDiff)
	summary(errors, warnings int)
}

func newRenderer(w io.Writer, cfg *Config) renderer {
	if cfg.Format == formatGitHub {
		return &githubRenderer{w: w, file: cfg.Source}
	}

	r := lipgloss.NewRenderer(w)
	if cfg.NoColor {
		r.SetColorProfile(termenv.Ascii)
	}
	return &textRenderer{
		w:    w,
		file: cfg.Source,
		styles: textStyles{
			error: r.NewStyle().Bold(true).
				Foreground(lipgloss.Color("#FF6B6B")),
			warning: r.NewStyle().Bold(true).
				Foreground(lipgloss.Color("#FFD166")),
			location: r.NewStyle().
				Foreground(lipgloss.Color("#666666")),
			ok: r.NewStyle().
				Foreground(lipgloss.Color("#90EE90")),
		},
	}
}

type textStyles struct {
	error    lipgloss.Style
	warning  lipgloss.Style
	location lipgloss.Style
	ok       lipgloss.Style
}

type textRenderer struct {
	w      io.Writer
	file   string
	styles textStyles
}

func (r *textRenderer) diff(d storagecheck.FormattedDiff) {
	style := r.styles.error
	if d.Level == storagecheck.LevelWarning {
		style = r.styles.warning
	}

	fmt.Fprintf(r.w, "%s %s\n", style.Render(string(d.Level)+":"), style.Render(d.Title))
	fmt.Fprintf(r.w, "  %s\n", d.Message)
	if r.file != "" && d.Range.Start.Line > 0 {
		at := fmt.Sprintf("%s:%d:%d", r.file, d.Range.Start.Line, d.Range.Start.Column+1)
		fmt.Fprintf(r.w, "  %s\n", r.styles.location.Render("--> "+at))
	}
}

func (r *textRenderer) summary(errors, warnings int) {
	if errors == 0 && warnings == 0 {
		fmt.Fprintln(r.w, r.styles.ok.Render("No storage layout diff found."))
		return
	}
	line := fmt.Sprintf("%s, %s", plural(errors, "error"), plural(warnings, "warning"))
	if errors > 0 {
		fmt.Fprintln(r.w, r.styles.error.Render(line))
		return
	}
	fmt.Fprintln(r.w, r.styles.warning.Render(line))
}

// githubRenderer prints workflow commands that GitHub Actions turns into
// annotations on the pull request.
type githubRenderer struct {
	w    io.Writer
	file string
}

func (r *githubRenderer) diff(d storagecheck.FormattedDiff) {
	props := []string{"title=" + escapeProperty(d.Title)}
	if r.file != "" {
		props = append(props, "file="+escapeProperty(r.file))
		if d.Range.Start.Line > 0 {
			props = append(props,
				fmt.Sprintf("line=%d", d.Range.Start.Line),
				fmt.Sprintf("endLine=%d", d.Range.End.Line),
				fmt.Sprintf("col=%d", d.Range.Start.Column+1),
				fmt.Sprintf("endColumn=%d", d.Range.End.Column+1),
			)
		}
	}
	fmt.Fprintf(r.w, "::%s %s::%s\n", d.Level, strings.Join(props, ","), escapeData(d.Message))
}

func (r *githubRenderer) summary(errors, warnings int) {
	if errors > 0 {
		fmt.Fprintf(r.w, "::error::%s\n", escapeData("Unsafe storage layout changes detected. Please see above for details."))
		return
	}
	fmt.Fprintf(r.w, "%s, %s\n", plural(errors, "error"), plural(warnings, "warning"))
}

var dataEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")

var propertyEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C")

func escapeData(s string) string {
	return dataEscaper.Replace(s)
}

func escapeProperty(s string) string {
	return propertyEscaper.Replace(s)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
