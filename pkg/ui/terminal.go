package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ASCII logo for the application
const ASCIILogo = `
    ╔═══════════════════════════════════════════════╗
    ║ ▀█▀ █ █ █   █▀▄▀█ █▀▀ █▀▄ █ ▄▀█   █▀▄ █       ║
    ║  █  ▀▄▀▄▀   █ ▀ █ ██▄ █▄▀ █ █▀█   █▄▀ █▄▄     ║
    ║        likes & timeline media downloader      ║
    ╚═══════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

var (
	mu        sync.Mutex
	out       io.Writer = os.Stdout
	errOut    io.Writer = os.Stderr
	quietMode bool
	noColor   bool
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if noColor {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(quiet bool) {
	mu.Lock()
	defer mu.Unlock()
	quietMode = quiet
}

// IsQuiet reports whether quiet mode is on
func IsQuiet() bool {
	mu.Lock()
	defer mu.Unlock()
	return quietMode
}

// SetNoColor disables ANSI colors
func SetNoColor(disable bool) {
	mu.Lock()
	defer mu.Unlock()
	noColor = disable
}

// SetOutput redirects regular and error output
func SetOutput(stdout, stderr io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = stdout
	errOut = stderr
}

// printf writes to the regular output unless quiet mode is on
func printf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if quietMode {
		return
	}
	fmt.Fprintf(out, format, args...)
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	printf("%s", Cyan(ASCIILogo))
}

// PrintError prints an error message in red. Errors are shown in quiet mode too.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(errOut, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printf("%s\n", Green(msg))
}

// PrintInfo prints an info message in cyan
func PrintInfo(label string, value string) {
	printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	printf("%s\n", Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printf("%s\n", Magenta(msg))
}
