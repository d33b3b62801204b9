// Package printer renders human-facing CLI output: status lines, check lists,
// batch outcome tables and error boxes.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/hay-kot/criterio"

	"github.com/hay-kot/alcl/internal/core/runs"
	"github.com/hay-kot/alcl/internal/core/session"
	"github.com/hay-kot/alcl/internal/styles"
	"github.com/hay-kot/alcl/pkg/executil"
)

// Symbols
const (
	Check = "✔"
	Cross = "✘"
	Dot   = "•"
	Skip  = "–"
)

// maxOutputLines bounds the captured command output shown in an error box.
const maxOutputLines = 12

type ctxKey struct{}

// Printer writes styled output. Colors follow the capabilities of the
// writer, so piping stderr to a file yields plain text.
type Printer struct {
	writer io.Writer

	green, yellow, red, gray lipgloss.Style
	section, summary         lipgloss.Style
}

// New creates a new Printer that writes to the given writer.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		writer:  w,
		green:   r.NewStyle().Foreground(styles.ColorGreen),
		yellow:  r.NewStyle().Foreground(styles.ColorYellow),
		red:     r.NewStyle().Foreground(styles.ColorRed),
		gray:    r.NewStyle().Foreground(styles.ColorGray),
		section: r.NewStyle().Bold(true).Underline(true),
		summary: r.NewStyle().Foreground(styles.ColorWhite).Bold(true),
	}
}

// NewContext returns a context with the printer attached.
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx retrieves the printer from context, or creates one writing to stderr.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stderr)
}

func (p *Printer) line(s string) {
	_, _ = io.WriteString(p.writer, s+"\n")
}

// FatalError prints err in a box. The caller decides the exit code.
//
// Validation errors list each field. A failed session step names the
// session and step and shows the tail of the failing command's output.
func (p *Printer) FatalError(err error) {
	if err == nil {
		return
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		p.box("Validation Error", p.fieldErrorLines(err, fieldErrs))
		return
	}

	var provErr *session.ProvisioningError
	if errors.As(err, &provErr) {
		p.box(fmt.Sprintf("Session %s failed at %s", provErr.Session, provErr.Step), p.stepLines(provErr))
		return
	}

	p.box("Error", []string{p.gray.Render(err.Error())})
}

func (p *Printer) box(title string, body []string) {
	bar := p.red.Render("│")
	p.line(p.red.Render("╭ " + title))
	for _, l := range body {
		if l == "" {
			p.line(bar)
			continue
		}
		p.line(bar + " " + l)
	}
	p.line(p.red.Render("╵"))
}

func (p *Printer) fieldErrorLines(wrapped error, fieldErrs criterio.FieldErrors) []string {
	var lines []string

	// Keep the wrapping context, e.g. "load config: invalid config".
	if idx := strings.Index(wrapped.Error(), fieldErrs.Error()); idx > 0 {
		lines = append(lines, p.gray.Render(strings.TrimSuffix(wrapped.Error()[:idx], ": ")), "")
	}

	for _, fe := range fieldErrs {
		l := p.red.Render(Cross) + " "
		if fe.Field != "" {
			l += p.gray.Render(fe.Field + ": ")
		}
		lines = append(lines, l+fe.Err.Error())
	}
	return lines
}

func (p *Printer) stepLines(provErr *session.ProvisioningError) []string {
	var readiness *session.ReadinessTimeoutError
	if errors.As(provErr, &readiness) {
		return []string{
			p.gray.Render(fmt.Sprintf("account %s after %d attempt(s)", readiness.Account, readiness.Attempts)),
			p.flag("resolves", readiness.Resolved),
			p.flag("network", readiness.NetworkReady),
		}
	}

	var exitErr *executil.ExitError
	if !errors.As(provErr, &exitErr) {
		return []string{p.gray.Render(provErr.Err.Error())}
	}

	cmdLine := strings.TrimSpace(exitErr.Cmd + " " + strings.Join(exitErr.Args, " "))
	status := fmt.Sprintf("exit code %d", exitErr.ExitCode)
	if exitErr.TimedOut {
		status = "timed out"
	}
	lines := []string{p.gray.Render(cmdLine + " (" + status + ")")}

	out := strings.TrimSpace(string(exitErr.Stderr))
	if out == "" {
		out = strings.TrimSpace(string(exitErr.Stdout))
	}
	if out == "" {
		return lines
	}

	outLines := strings.Split(out, "\n")
	if len(outLines) > maxOutputLines {
		lines = append(lines, "", p.gray.Render(fmt.Sprintf("... %d earlier line(s)", len(outLines)-maxOutputLines)))
		outLines = outLines[len(outLines)-maxOutputLines:]
	} else {
		lines = append(lines, "")
	}
	return append(lines, outLines...)
}

func (p *Printer) flag(label string, ok bool) string {
	if ok {
		return p.green.Render(Check) + " " + label
	}
	return p.red.Render(Cross) + " " + label
}

// Errorf prints an error message in red.
func (p *Printer) Errorf(format string, args ...any) {
	p.line(p.red.Render(Cross + " " + fmt.Sprintf(format, args...)))
}

// Successf prints a success message in green.
func (p *Printer) Successf(format string, args ...any) {
	p.line(p.green.Render(Check + " " + fmt.Sprintf(format, args...)))
}

// Infof prints an info message in gray.
func (p *Printer) Infof(format string, args ...any) {
	p.line(p.gray.Render(Dot + " " + fmt.Sprintf(format, args...)))
}

// Warnf prints a warning message in yellow.
func (p *Printer) Warnf(format string, args ...any) {
	p.line(p.yellow.Render(Dot + " " + fmt.Sprintf(format, args...)))
}

// Printf prints a plain message.
func (p *Printer) Printf(format string, args ...any) {
	p.line(fmt.Sprintf(format, args...))
}

// Section prints a section header.
func (p *Printer) Section(title string) {
	p.line(p.section.Render(title))
}

// CheckItem prints a passing item.
func (p *Printer) CheckItem(label, detail string) {
	p.item(p.green, Check, label, detail)
}

// WarnItem prints a warning item.
func (p *Printer) WarnItem(label, detail string) {
	p.item(p.yellow, Dot, label, detail)
}

// FailItem prints a failing item.
func (p *Printer) FailItem(label, detail string) {
	p.item(p.red, Cross, label, detail)
}

func (p *Printer) item(style lipgloss.Style, symbol, label, detail string) {
	l := "  " + style.Render(symbol) + " " + label
	if detail != "" {
		l += ": " + detail
	}
	p.line(l)
}

// Outcomes prints one row per session followed by the errors of failed
// sessions and a totals line.
func (p *Printer) Outcomes(outcomes []runs.Outcome) {
	w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SESSION\tSTATUS\tDURATION")

	for _, o := range outcomes {
		var status string
		switch o.Status {
		case runs.StatusSucceeded:
			status = p.green.Render(Check + " ok")
		case runs.StatusFailed:
			status = p.red.Render(Cross + " failed")
		default:
			status = p.gray.Render(Skip + " skipped")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", o.Session, status, o.Duration.Round(time.Second))
	}
	_ = w.Flush()

	for _, o := range outcomes {
		if o.Error == "" {
			continue
		}
		p.line("")
		p.Errorf("%s", o.Session)
		p.line("  " + p.gray.Render(o.Error))
	}

	p.line("")
	p.line(p.summary.Render(fmt.Sprintf("%d succeeded, %d failed, %d skipped",
		countStatus(outcomes, runs.StatusSucceeded),
		countStatus(outcomes, runs.StatusFailed),
		countStatus(outcomes, runs.StatusSkipped))))
}

func countStatus(outcomes []runs.Outcome, status runs.Status) int {
	n := 0
	for _, o := range outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Report prints the checks of a validation report.
func (p *Printer) Report(report session.ValidationReport) {
	p.Section(report.Session + " (" + report.Account + ")")
	for _, c := range report.Checks {
		if c.Passed() {
			p.CheckItem(c.Command, c.Output)
			continue
		}
		detail := c.Error
		if c.Output != "" {
			detail += ": " + c.Output
		}
		p.FailItem(c.Command, detail)
	}
}

// StatusOK renders a passing table cell for stdout.
func StatusOK() string {
	return styles.OKStyle.Render(Check + " ok")
}

// StatusFailed renders a failing table cell for stdout.
func StatusFailed(msg string) string {
	return styles.FailStyle.Render(Cross + " " + msg)
}

// StatusWarn renders a warning table cell for stdout.
func StatusWarn(msg string) string {
	return styles.WarnStyle.Render(Dot + " " + msg)
}
