package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	refColor     = color.New(color.FgMagenta, color.Underline)
)

// styles used for boxed summaries
var styles = struct {
	Bold     lipgloss.Style
	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Bold: lipgloss.NewStyle().Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("42")).
		Padding(0, 1),

	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("196")).
		Padding(0, 1),
}

func printSuccess(w io.Writer, format string, args ...any) {
	successColor.Fprintf(w, "✓ %s\n", fmt.Sprintf(format, args...))
}

func printError(w io.Writer, format string, args ...any) {
	errorColor.Fprintf(w, "✗ %s\n", fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	warningColor.Fprintf(w, "⚠ %s\n", fmt.Sprintf(format, args...))
}

func printInfo(w io.Writer, format string, args ...any) {
	infoColor.Fprintf(w, "ℹ %s\n", fmt.Sprintf(format, args...))
}

func printBox(w io.Writer, title, body string) {
	fmt.Fprintln(w, styles.Box.Render(styles.Bold.Render(title)+"\n"+body))
}

func printErrorBox(w io.Writer, title, body string) {
	fmt.Fprintln(w, styles.ErrorBox.Render(styles.Bold.Render(title)+"\n"+body))
}
