package bachroot

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gookit/color"
	"golang.org/x/term"
)

// color-compatible printer interface (works with *color.Theme and *color.Style)
type colorPrinter interface {
	Printf(format string, a ...any)
	Println(a ...any)
}

// cPrintf prints with a colored style or falls back to fmt.Printf when nil
func cPrintf(p colorPrinter, format string, a ...any) {
	if p == nil {
		fmt.Printf(format, a...)
		return
	}
	p.Printf(format, a...)
}

// cPrintln prints a line with the given style or falls back to fmt.Println when nil
func cPrintln(p colorPrinter, a ...any) {
	if p == nil {
		fmt.Println(a...)
		return
	}
	p.Println(a...)
}

// step prints an in-progress line: a yellow arrow followed by the message.
func step(format string, a ...any) {
	colArrow.Print("-> ")
	cPrintf(colWarn, format+"\n", a...)
}

// done prints a success line.
func done(format string, a ...any) {
	colArrow.Print("-> ")
	cPrintf(colSuccess, format+"\n", a...)
}

// fail prints a failure line.
func fail(format string, a ...any) {
	colArrow.Print("-> ")
	cPrintf(colError, format+"\n", a...)
}

// debugf prints debug messages when Debug is true
func debugf(format string, args ...any) {
	if Debug {
		logger.Debugf(strings.TrimRight(format, "\n"), args...)
	}
}

// setDebug toggles debug output and the logger level together.
func setDebug(on bool) {
	Debug = on
	if on {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

// configureColor disables colored output when stdout is not a terminal or
// NO_COLOR is set.
func configureColor() {
	if os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		color.Enable = false
	}
}
