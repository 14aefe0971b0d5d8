package logger

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Color printers shared by the formatter and CLI output.
var (
	SuccessColor = color.New(color.FgGreen, color.Bold)
	ErrorColor   = color.New(color.FgRed, color.Bold)
	WarnColor    = color.New(color.FgYellow, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	DebugColor   = color.New(color.FgWhite)

	HighlightColor = color.New(color.FgMagenta, color.Bold)
	DimColor       = color.New(color.FgHiBlack)
)

// Success prints a success line with a green checkmark.
func Success(format string, args ...interface{}) {
	_, _ = SuccessColor.Fprint(os.Stdout, "✓ ")
	fmt.Printf(format+"\n", args...)
}

// Error prints an error line with a red X to stderr.
func Error(format string, args ...interface{}) {
	_, _ = ErrorColor.Fprint(os.Stderr, "✗ ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Warning prints a warning line with a yellow marker.
func Warning(format string, args ...interface{}) {
	_, _ = WarnColor.Fprint(os.Stdout, "⚠ ")
	fmt.Printf(format+"\n", args...)
}

// Info prints an info line with a cyan arrow.
func Info(format string, args ...interface{}) {
	_, _ = InfoColor.Fprint(os.Stdout, "→ ")
	fmt.Printf(format+"\n", args...)
}

// Header prints a bold section header.
func Header(format string, args ...interface{}) {
	_, _ = HighlightColor.Printf(format+"\n", args...)
}

// StatusLine prints an indented key/value status line.
func StatusLine(key, value string) {
	_, _ = DimColor.Printf("  %s: ", key)
	fmt.Println(value)
}

// DisableColors turns off all colored output.
func DisableColors() {
	color.NoColor = true
}
