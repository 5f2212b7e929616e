package bachroot

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// TestPackage installs a built package into the working copy and runs
// command inside it. When the install fails the command is not run.
func (c *Chroot) TestPackage(ctx context.Context, artifact, command string) error {
	if err := validateCommand(command); err != nil {
		return err
	}
	if err := c.requireChroot(); err != nil {
		return err
	}

	return c.locked(func() error {
		stages := []stage{
			{"install package", func(ctx context.Context) error {
				if sum, err := fileDigest(artifact); err == nil {
					debugf("testing %s (blake3 %s)", artifact, sum)
				}
				cmd := exec.Command(c.Env.Pacman, "--root", c.Env.WorkingCopy, "-U", "--noconfirm", artifact)
				if err := c.Root.Run(cmd); err != nil {
					fail("Package %s wasn't installed in the chroot environment, please check the package name.", artifact)
					return fmt.Errorf("package %s wasn't installed: %w", artifact, err)
				}
				done("Package %s installed correctly! Testing it now...", artifact)
				return nil
			}},
			{"run test command", func(ctx context.Context) error {
				if err := c.nspawn(c.Env.WorkingCopy, "/bin/sh", "-c", command); err != nil {
					fail("An error occurred while executing %q in the chroot environment.", command)
					return err
				}
				done("Command %q successfully executed!", command)
				return nil
			}},
		}
		return runStages(ctx, "test", stages)
	})
}

// validateCommand rejects empty or unparsable shell commands before any
// package is installed.
func validateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("empty test command")
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(command), ""); err != nil {
		return fmt.Errorf("invalid test command %q: %w", command, err)
	}
	return nil
}
