package bachroot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

const (
	pacmanConf  = "/etc/pacman.conf"
	makepkgConf = "/etc/makepkg.conf"
	strapPath   = "/strap.sh"
)

// Packages mkarchroot installs into a fresh root image.
var basePackages = []string{"base", "base-devel"}

// Setup creates the chroot from scratch: base image, multilib, zstd
// packages, the BlackArch repository, and finally the working copy.
// An existing chroot directory is never touched.
func (c *Chroot) Setup(ctx context.Context) error {
	if _, err := os.Lstat(c.Env.ChrootDir); err == nil {
		return fmt.Errorf("%w: %s, remove it or try with a different path", ErrChrootExists, c.Env.ChrootDir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return c.locked(func() error {
		if err := runStages(ctx, "setup", c.setupStages()); err != nil {
			return err
		}
		done("Chroot environment setup complete!")
		return nil
	})
}

func (c *Chroot) setupStages() []stage {
	root := c.Env.RootImage
	return []stage{
		{"create chroot directory", func(ctx context.Context) error {
			step("Creating chroot directory with name: %s", c.Env.ChrootDir)
			return os.Mkdir(c.Env.ChrootDir, 0o755)
		}},
		{"bootstrap root image", func(ctx context.Context) error {
			step("Setting up chroot environment...")
			args := append([]string{root}, basePackages...)
			return c.Root.Run(exec.Command(c.Env.Mkarchroot, args...))
		}},
		{"enable multilib", func(ctx context.Context) error {
			step("Enabling multilib repos...")
			script, err := appendLinesScript(pacmanConf, "", "[multilib]", "Include = /etc/pacman.d/mirrorlist")
			if err != nil {
				return err
			}
			return c.nspawn(root, "/bin/sh", "-c", script)
		}},
		{"configure package compression", func(ctx context.Context) error {
			step("Configuring zstd package compression...")
			script, err := appendLinesScript(makepkgConf, "PKGEXT='.pkg.tar.zst'")
			if err != nil {
				return err
			}
			return c.nspawn(root, "/bin/sh", "-c", script)
		}},
		{"fetch strap.sh", func(ctx context.Context) error {
			step("Configuring BlackArch Linux repo in the chroot environment...")
			return c.nspawn(root, "curl", "-fsSL", "-o", strapPath, c.Env.StrapURL)
		}},
		{"run strap.sh", func(ctx context.Context) error {
			return c.nspawn(root, "sh", strapPath)
		}},
		{"remove strap.sh", func(ctx context.Context) error {
			return c.nspawn(root, "rm", "-f", strapPath)
		}},
		{"sync working copy", c.sync},
	}
}

// Update upgrades every package in the root image and refreshes the
// working copy.
func (c *Chroot) Update(ctx context.Context) error {
	if err := c.requireChroot(); err != nil {
		return err
	}
	return c.locked(func() error {
		stages := []stage{
			{"upgrade root image", func(ctx context.Context) error {
				step("Updating the chroot environment...")
				return c.nspawn(c.Env.RootImage, "pacman", "--noconfirm", "-Syuu")
			}},
			{"sync working copy", c.sync},
		}
		if err := runStages(ctx, "update", stages); err != nil {
			return err
		}
		done("Chroot environment updated correctly!")
		return nil
	})
}

// appendLinesScript builds a /bin/sh script appending lines to file, each
// line quoted for the shell.
func appendLinesScript(file string, lines ...string) (string, error) {
	quoted := make([]string, 0, len(lines))
	for _, l := range lines {
		q, err := syntax.Quote(l, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("cannot quote %q: %w", l, err)
		}
		quoted = append(quoted, q)
	}
	target, err := syntax.Quote(file, syntax.LangPOSIX)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("printf '%%s\\n' %s >> %s", strings.Join(quoted, " "), target), nil
}
