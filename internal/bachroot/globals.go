package bachroot

import (
	"errors"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gookit/color"
)

// GLOBAL STATE
// We use a value of 1 for critical and 0 for non-critical/default.
var isCriticalAtomic atomic.Int32

// Global variables
var (
	Debug     bool
	Verbose   bool
	version   = "dev"     // overridden at build time
	buildDate = "unknown" // overridden at build time
)

var (
	ErrNoHome       = errors.New("HOME is not set")
	ErrUnknownKey   = errors.New("unknown environment key")
	ErrChrootExists = errors.New("chroot directory already exists")
	ErrNoChroot     = errors.New("chroot environment doesn't exist, run 'bachroot setup' first")
	ErrLocked       = errors.New("another bachroot instance is running")
	ErrNoArtifacts  = errors.New("no package files given")
	ErrNoBuildLog   = errors.New("no build log found")
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.Success
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	Prefix: "bachroot",
})
