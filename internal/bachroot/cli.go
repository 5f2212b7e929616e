package bachroot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/pflag"
)

// usageError marks bad command-line input.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, a ...any) error {
	return &usageError{msg: fmt.Sprintf(format, a...)}
}

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: bachroot [--debug] [--verbose] <command> [arguments]")
	fmt.Println()
	cPrintln(colInfo, "Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"setup", "", "Create the chroot, its root image and working copy"},
		{"update", "", "Upgrade the root image and resync the working copy"},
		{"sync", "", "Recreate the working copy from the root image"},
		{"build", "[--clean] [--verbose]", "Build the PKGBUILD in the current directory"},
		{"install-missing", "[--clean] [--verbose] <pkgfile>...", "Install local packages into the working copy, then build"},
		{"test", "<pkgfile> <command...>", "Install a built package and run a command with it"},
		{"clean", "", "Remove the working copy"},
		{"shell", "[command...]", "Run a command in the working copy (default: /bin/bash)"},
		{"log", "[--path]", "Show the latest build log"},
		{"version", "", "Version information"},
	}

	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usageString = fmt.Sprintf("  %s", c.Cmd)
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}

		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		cPrintln(colInfo, c.Desc)
	}
	fmt.Println()
}

// Main is the CLI entrypoint for cmd/bachroot.
func Main() {
	configureColor()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			select {
			case sig := <-sigs:
				if isCriticalAtomic.Load() == 1 {
					// Block the first signal while the working copy is being replaced.
					colArrow.Print("\n-> ")
					colError.Printf("Working copy replacement in progress. Press Ctrl+C AGAIN to force exit NOW.\n")
					select {
					case <-sigs:
						os.Exit(130)
					case <-time.After(5 * time.Second):
						continue
					case <-ctx.Done():
						return
					}
				}
				colArrow.Print("\n-> ")
				color.Danger.Printf("Received %v. Cancelling process gracefully\n", sig)
				cancel()
				select {
				case <-sigs:
					os.Exit(130)
				case <-time.After(2 * time.Second):
					os.Exit(130)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	os.Exit(run(ctx, os.Args[1:]))
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string) int {
	err := dispatch(ctx, args)
	if err != nil {
		var usage *usageError
		if errors.As(err, &usage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintln(os.Stderr, "Run 'bachroot help' for usage.")
		} else {
			fail("%v", err)
		}
	}
	return exitCode(err)
}

// exitCode maps an operation's outcome to the process exit status.
func exitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &usage):
		return 2
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

func dispatch(ctx context.Context, args []string) error {
	global := pflag.NewFlagSet("bachroot", pflag.ContinueOnError)
	global.SetInterspersed(false)
	debug := global.BoolP("debug", "d", false, "enable debug output")
	global.BoolVarP(&Verbose, "verbose", "v", false, "stream tool output to the console")
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp()
			return nil
		}
		return usagef("%v", err)
	}
	args = global.Args()

	if len(args) == 0 {
		printHelp()
		return nil
	}

	switch args[0] {
	case "help", "-h", "--help":
		printHelp()
		return nil
	case "version", "--version":
		colNote.Printf("bachroot %s built %s\n", version, buildDate)
		return nil
	}

	cfg, err := loadConfig(ConfigFile)
	if err != nil {
		debugf("reading %s: %v", ConfigFile, err)
	}
	initConfig(cfg)
	if *debug {
		setDebug(true)
	}

	env, err := ResolveEnvironment(os.Getenv, cfg)
	if err != nil {
		return err
	}

	if needsRootPrivileges(args) {
		if err := authenticateOnce(); err != nil {
			return err
		}
	}

	c := NewChroot(env, NewExecutor(ctx, false), NewExecutor(ctx, true))
	return runCommand(ctx, c, args)
}

// runCommand dispatches one subcommand against c.
func runCommand(ctx context.Context, c *Chroot, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "setup", "update", "sync", "clean":
		if len(rest) > 0 {
			return usagef("%s takes no arguments", cmd)
		}
	}

	switch cmd {
	case "setup":
		return c.Setup(ctx)

	case "update":
		return c.Update(ctx)

	case "sync":
		return c.Sync(ctx)

	case "clean":
		return c.Clean(ctx)

	case "build":
		opts, pkgs, err := parseBuildFlags("build", rest)
		if err != nil {
			return err
		}
		if len(pkgs) > 0 {
			return usagef("build takes no positional arguments, got %v", pkgs)
		}
		return c.Build(ctx, opts)

	case "install-missing":
		opts, pkgs, err := parseBuildFlags("install-missing", rest)
		if err != nil {
			return err
		}
		if len(pkgs) == 0 {
			return usagef("install-missing needs at least one package file")
		}
		return c.InstallMissing(ctx, pkgs, opts)

	case "test":
		if len(rest) < 2 {
			return usagef("usage: bachroot test <pkgfile> <command...>")
		}
		return c.TestPackage(ctx, rest[0], strings.Join(rest[1:], " "))

	case "shell":
		code, err := c.Shell(ctx, rest)
		if err != nil {
			return err
		}
		if code != 0 {
			return fmt.Errorf("command exited with status %d", code)
		}
		return nil

	case "log":
		fs := pflag.NewFlagSet("log", pflag.ContinueOnError)
		pathOnly := fs.Bool("path", false, "print the log path instead of its contents")
		if err := fs.Parse(rest); err != nil {
			return usagef("%v", err)
		}
		path, err := latestBuildLog(c.Env.LogDir)
		if err != nil {
			return err
		}
		if *pathOnly {
			fmt.Println(path)
			return nil
		}
		return showBuildLog(ctx, path)
	}
	return usagef("unknown command %q", cmd)
}

func parseBuildFlags(name string, args []string) (BuildOptions, []string, error) {
	var opts BuildOptions
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.BoolVarP(&opts.Clean, "clean", "c", false, "remove the working copy before syncing")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "stream builder output to the console")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return opts, nil, usagef("%s [--clean] [--verbose]", name)
		}
		return opts, nil, usagef("%v", err)
	}
	return opts, fs.Args(), nil
}
