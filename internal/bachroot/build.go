package bachroot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
)

// manifestFile is the build manifest linted before each build, relative
// to the current directory.
const manifestFile = "PKGBUILD"

// BuildOptions tune Build and InstallMissing.
type BuildOptions struct {
	// Clean removes the working copy before syncing, so it is recreated
	// instead of mirrored over.
	Clean bool
	// Verbose streams builder output to the console as well as the log.
	Verbose bool
}

// Build syncs the working copy, lints the PKGBUILD when a linter is
// available, and runs makechrootpkg against the working copy.
func (c *Chroot) Build(ctx context.Context, opts BuildOptions) error {
	if err := c.requireChroot(); err != nil {
		return err
	}
	return c.locked(func() error {
		stages := append(c.prepareStages(opts), c.buildStages(opts)...)
		return runStages(ctx, "build", stages)
	})
}

// prepareStages brings the working copy back to the root image.
func (c *Chroot) prepareStages(opts BuildOptions) []stage {
	var stages []stage
	if opts.Clean {
		stages = append(stages, stage{"clean working copy", c.clean})
	}
	return append(stages, stage{"sync working copy", c.sync})
}

// buildStages lints and builds without touching the working copy first.
func (c *Chroot) buildStages(opts BuildOptions) []stage {
	return []stage{
		{"lint " + manifestFile, c.lint},
		{"build package", func(ctx context.Context) error { return c.runBuilder(ctx, opts) }},
	}
}

// lint runs the manifest linter if one is installed. Its verdict is
// reported but never stops the build.
func (c *Chroot) lint(ctx context.Context) error {
	linter, err := c.lookPath(c.Env.Linter)
	if err != nil {
		debugf("linter %s not available, skipping: %v", c.Env.Linter, err)
		return nil
	}
	if _, err := os.Stat(manifestFile); errors.Is(err, fs.ErrNotExist) {
		colArrow.Print("-> ")
		cPrintf(colWarn, "No %s in the current directory, skipping lint.\n", manifestFile)
		return nil
	}

	step("Linting %s with %s...", manifestFile, linter)
	if err := c.User.Run(exec.Command(linter, manifestFile)); err != nil {
		if exitFailure(err) {
			fail("%s reported problems in %s: %v", linter, manifestFile, err)
		} else {
			colArrow.Print("-> ")
			cPrintf(colWarn, "Could not run %s: %v\n", linter, err)
		}
		return nil
	}
	done("%s passed %s.", manifestFile, linter)
	return nil
}

func (c *Chroot) builderArgs() []string {
	return []string{"-l", c.Env.Instance, "-r", c.Env.ChrootDir}
}

// runBuilder invokes makechrootpkg, capturing its output into a compressed
// build log.
func (c *Chroot) runBuilder(ctx context.Context, opts BuildOptions) error {
	step("Building package in %s ...", c.Env.WorkingCopy)

	blog, err := createBuildLog(c.Env.LogDir, c.now())
	if err != nil {
		return err
	}

	var out io.Writer = blog
	if opts.Verbose || Verbose {
		out = io.MultiWriter(os.Stdout, blog)
	}
	cmd := exec.Command(c.Env.Makechrootpkg, c.builderArgs()...)
	cmd.Stdout = out
	cmd.Stderr = out

	runErr := c.User.Run(cmd)
	if err := blog.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write build log: %v\n", err)
	}

	if runErr != nil {
		fail("Failed to build the package. Build log: %s", blog.path)
		return runErr
	}
	done("Package built successfully! Build log: %s", blog.path)
	return nil
}

// InstallMissing stages local package files into the working copy,
// installs them there in one pacman transaction, then builds without
// resyncing so the injected packages stay in place. Whatever was staged is
// removed afterwards, whether or not the build succeeded.
func (c *Chroot) InstallMissing(ctx context.Context, artifacts []string, opts BuildOptions) error {
	if len(artifacts) == 0 {
		return ErrNoArtifacts
	}
	if err := checkStagedNames(artifacts); err != nil {
		return err
	}
	if err := c.requireChroot(); err != nil {
		return err
	}
	return c.locked(func() error {
		var staged []string
		defer func() {
			if err := c.clearStaged(ctx, staged); err != nil {
				colArrow.Print("-> ")
				cPrintf(colWarn, "Warning: failed to clear staged packages: %v\n", err)
			}
		}()

		stages := c.prepareStages(opts)
		stages = append(stages,
			stage{"stage packages", func(ctx context.Context) error {
				var err error
				staged, err = c.stageArtifacts(ctx, artifacts)
				return err
			}},
			stage{"install packages", func(ctx context.Context) error {
				return c.installStaged(ctx, artifacts)
			}},
		)
		stages = append(stages, c.buildStages(opts)...)
		return runStages(ctx, "install-missing", stages)
	})
}
