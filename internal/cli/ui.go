package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/refreshd/pkg/extract"
	"github.com/matzehuels/refreshd/pkg/integrations/github"
	"github.com/matzehuels/refreshd/pkg/refresh"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - links
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	StyleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleLink    = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)
	StyleDim     = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	StyleNumber  = lipgloss.NewStyle().Foreground(colorCyan)
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleKey         = lipgloss.NewStyle().Foreground(colorGray).Width(16)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconNone    = "-"
)

// =============================================================================
// Status Output
// =============================================================================

func (c *CLI) printSuccess(format string, args ...any) {
	fmt.Fprintln(c.out, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func (c *CLI) printError(format string, args ...any) {
	fmt.Fprintln(c.out, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func (c *CLI) printWarning(format string, args ...any) {
	fmt.Fprintln(c.out, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func (c *CLI) printInfo(format string, args ...any) {
	fmt.Fprintln(c.out, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

func (c *CLI) printDetail(format string, args ...any) {
	fmt.Fprintln(c.out, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printKeyValue prints a labeled value. Empty values print as a dash.
func (c *CLI) printKeyValue(key, value string) {
	if value == "" {
		value = StyleDim.Render(iconNone)
	} else {
		value = StyleValue.Render(value)
	}
	fmt.Fprintln(c.out, styleKey.Render(key)+" "+value)
}

func (c *CLI) printLink(key, url string) {
	if url == "" {
		c.printKeyValue(key, "")
		return
	}
	fmt.Fprintln(c.out, styleKey.Render(key)+" "+StyleLink.Render(url))
}

// =============================================================================
// Domain Output
// =============================================================================

func (c *CLI) printTickStatus(st refresh.TickStatus) {
	fmt.Fprintln(c.out, StyleTitle.Render("Tick "+st.TickID))
	c.printKeyValue("started", st.LastTickAt.Format(time.RFC3339))
	c.printKeyValue("due", StyleNumber.Render(fmt.Sprint(st.DueCount)))
	c.printKeyValue("batch", StyleNumber.Render(fmt.Sprint(st.BatchSize)))
	c.printKeyValue("processed", StyleNumber.Render(fmt.Sprint(st.RecordsProcessed)))
	c.printKeyValue("failed", StyleNumber.Render(fmt.Sprint(st.RecordsFailed)))
	c.printKeyValue("rate limited", StyleNumber.Render(fmt.Sprint(st.RecordsSkippedRateLimited)))
	c.printKeyValue("duration", st.Duration.Round(time.Millisecond).String())

	switch {
	case st.Error != "":
		c.printError("%s", st.Error)
	case st.BatchSize == 0:
		c.printInfo("Nothing due")
	case st.RecordsSkippedRateLimited > 0:
		c.printWarning("GitHub rate limit reached; %d records stay due", st.RecordsSkippedRateLimited)
	}
}

func (c *CLI) printExtraction(res *extract.Result) {
	fmt.Fprintln(c.out, StyleTitle.Render(res.FinalURL))
	if res.FinalURL != res.RequestedURL {
		c.printDetail("redirected from %s", res.RequestedURL)
	}
	c.printKeyValue("status", fmt.Sprint(res.StatusCode))
	c.printKeyValue("title", res.Title)
	c.printKeyValue("description", res.Description)
	c.printLink("logo", res.Logo)
	c.printLink("source code", res.SourceCodeURL)
	c.printLink("documentation", res.DocumentationURL)
}

func (c *CLI) printEnrichment(e *github.Enrichment) {
	fmt.Fprintln(c.out, StyleTitle.Render(e.Owner+"/"+e.Repo))
	c.printKeyValue("stars", StyleNumber.Render(fmt.Sprint(e.Stars)))
	c.printKeyValue("archived", fmt.Sprint(e.Archived))
	c.printKeyValue("license", e.License)
	if e.LastCommitAt != nil {
		c.printKeyValue("last commit", e.LastCommitAt.Format(time.RFC3339))
	} else {
		c.printKeyValue("last commit", "")
	}

	shares := make([]string, len(e.Languages))
	for i, l := range e.Languages {
		shares[i] = fmt.Sprintf("%s %.1f%%", l.Name, l.Share)
	}
	c.printKeyValue("languages", strings.Join(shares, ", "))
	c.printKeyValue("selected", strings.Join(e.Selected, ", "))
	if e.Description != "" {
		c.printDetail("%s", e.Description)
	}
}
