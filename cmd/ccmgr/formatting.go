package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/pterm/pterm"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

var (
	nameStyle    = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

func init() {
	// Plain output when piped; lipgloss would otherwise emit escapes
	// into scripts.
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

func styleName(s string) string {
	return nameStyle.Render(s)
}

// renderSourceTable prints the 'list' output: one row per registered
// source with its deployment status from the state file.
func renderSourceTable(sources []types.Source, records map[string]*types.DeploymentRecord) error {
	data := pterm.TableData{
		{"SOURCE", "MODE", "CATEGORY", "FILES", "LAST DEPLOYED", "ERRORS"},
	}
	for _, src := range sources {
		files := "-"
		lastDeployed := "never"
		errCount := "-"
		if rec, ok := records[src.ID]; ok && rec != nil {
			files = strconv.Itoa(len(rec.DeployedFiles))
			lastDeployed = rec.LastDeployedAt.Format(time.RFC3339)
			if n := len(rec.LastErrors); n > 0 {
				errCount = errorStyle.Render(strconv.Itoa(n))
			} else {
				errCount = "0"
			}
		}
		category := string(src.Category)
		if category == "" {
			category = "-"
		}
		data = append(data, []string{src.ID, string(src.Mode), category, files, lastDeployed, errCount})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// renderDeployResults prints the per-source outcome of a deploy run.
func renderDeployResults(results map[string]*types.DeploymentResult, failures map[string]error, dryRun bool) {
	if dryRun {
		fmt.Println(warnStyle.Render("dry run: no files were written"))
	}

	for _, id := range sortedResultIDs(results, failures) {
		fmt.Println(styleName(id))

		if err, failed := failures[id]; failed {
			if _, hasResult := results[id]; !hasResult {
				fmt.Printf("  %s %v\n", errorStyle.Render("failed:"), err)
				continue
			}
			fmt.Printf("  %s %v\n", errorStyle.Render("error:"), err)
		}

		result := results[id]
		if result == nil {
			continue
		}

		fmt.Printf("  %s %s %s %s %s\n",
			successStyle.Render(fmt.Sprintf("%d deployed", len(result.Deployed))),
			dimStyle.Render(fmt.Sprintf("%d skipped", len(result.Skipped))),
			warnStyle.Render(fmt.Sprintf("%d conflicts", len(result.Conflicts))),
			errorStyle.Render(fmt.Sprintf("%d failed", len(result.Failed))),
			dimStyle.Render(fmt.Sprintf("%d removed", len(result.Removed))),
		)

		for _, f := range result.Deployed {
			fmt.Printf("    %s %s\n", successStyle.Render("+"), f.TargetPath)
		}
		for _, path := range result.Skipped {
			fmt.Printf("    %s %s\n", dimStyle.Render("="), path)
		}
		for _, path := range result.Failed {
			fmt.Printf("    %s %s\n", errorStyle.Render("!"), path)
		}
		for _, path := range result.Removed {
			fmt.Printf("    %s %s\n", warnStyle.Render("-"), path)
		}
		if len(result.Conflicts) > 0 {
			fmt.Printf("    %s %s\n", warnStyle.Render("conflicts:"), joinOrDash(result.Conflicts))
		}
	}
}

// renderArtifact pretty-prints a deployed artifact. Markdown gets the
// full glamour treatment on a terminal; everything else (and any piped
// output) is written verbatim.
func renderArtifact(w io.Writer, path string, data []byte) error {
	isTerminal := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if !isTerminal || !strings.HasSuffix(strings.ToLower(path), ".md") {
		_, err := w.Write(data)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		_, werr := w.Write(data)
		return werr
	}
	out, err := renderer.Render(string(data))
	if err != nil {
		_, werr := w.Write(data)
		return werr
	}
	_, err = io.WriteString(w, out)
	return err
}
