package bachroot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"time"
)

// Chroot runs the workflow operations against one Environment.
type Chroot struct {
	Env  *Environment
	User *Executor // tools that must not run as root (makechrootpkg, linter)
	Root *Executor // everything touching root-owned trees

	isSubvolume func(path string) bool
	lookPath    func(file string) (string, error)
	now         func() time.Time
}

func NewChroot(env *Environment, user, root *Executor) *Chroot {
	return &Chroot{
		Env:         env,
		User:        user,
		Root:        root,
		isSubvolume: isBtrfsSubvolume,
		lookPath:    exec.LookPath,
		now:         time.Now,
	}
}

// requireChroot fails with ErrNoChroot unless setup has created the chroot.
func (c *Chroot) requireChroot() error {
	if _, err := os.Stat(c.Env.ChrootDir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNoChroot
		}
		return err
	}
	return nil
}

// locked runs fn while holding the single-instance lock.
func (c *Chroot) locked(fn func() error) error {
	lock, err := acquireLock(c.Env.LockPath)
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}

// nspawn runs a command inside image through arch-nspawn, as root.
func (c *Chroot) nspawn(image string, args ...string) error {
	cmd := exec.Command(c.Env.Nspawn, append([]string{image}, args...)...)
	return c.Root.Run(cmd)
}

// Shell runs args inside the working copy, defaulting to an interactive
// login shell, and returns the command's exit code.
func (c *Chroot) Shell(ctx context.Context, args []string) (int, error) {
	if err := c.requireChroot(); err != nil {
		return 1, err
	}
	if _, err := os.Stat(c.Env.WorkingCopy); err != nil {
		return 1, fmt.Errorf("working copy %s is missing, run 'bachroot sync' first", c.Env.WorkingCopy)
	}
	if len(args) == 0 {
		args = []string{"/bin/bash", "-i", "-l"}
	}

	interactive := &Executor{Context: ctx, ShouldRunAsRoot: c.Root.ShouldRunAsRoot, Interactive: true}
	cmd := exec.Command(c.Env.Nspawn, append([]string{c.Env.WorkingCopy}, args...)...)

	colArrow.Print("-> ")
	colSuccess.Printf("Executing command %v in %s\n", args, c.Env.WorkingCopy)

	err := interactive.Run(cmd)
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code == 127 {
			fail("The target executable '%s' was not found inside %s.", args[0], c.Env.WorkingCopy)
			return 127, nil
		}
		return code, nil
	}
	return 1, err
}
