package bachroot

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
)

// Sync recreates the working copy from the root image.
func (c *Chroot) Sync(ctx context.Context) error {
	if err := c.requireChroot(); err != nil {
		return err
	}
	return c.locked(func() error { return c.sync(ctx) })
}

// sync is Sync without the lock, for use inside other operations.
//
// A missing working copy is created and mirrored. A working copy that is a
// btrfs subvolume is replaced by a fresh snapshot of the root image.
// Anything else is mirrored with rsync, deleting extraneous files.
func (c *Chroot) sync(ctx context.Context) error {
	wc := c.Env.WorkingCopy
	step("Syncing chroot copy %s with %s ...", wc, c.Env.RootImage)
	if err := c.requireChroot(); err != nil {
		return err
	}

	var stages []stage
	_, err := os.Stat(wc)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		stages = []stage{
			{"create working copy", func(ctx context.Context) error {
				return c.Root.Run(exec.Command("mkdir", "-p", wc))
			}},
			{"mirror root image", c.mirror},
		}
	case err != nil:
		return err
	case c.isSubvolume(wc):
		// Between delete and snapshot there is no working copy at all.
		isCriticalAtomic.Store(1)
		defer isCriticalAtomic.Store(0)
		stages = []stage{
			{"delete working copy subvolume", c.deleteSubvolume},
			{"snapshot root image", func(ctx context.Context) error {
				cmd := exec.Command(c.Env.Btrfs, "subvolume", "snapshot",
					filepath.Clean(c.Env.RootImage), filepath.Clean(wc))
				return c.Root.Run(cmd)
			}},
		}
	default:
		stages = []stage{{"mirror root image", c.mirror}}
	}

	if err := runStages(ctx, "sync", stages); err != nil {
		fail("Failed to create copy of root chroot environment.")
		return err
	}
	done("Chroot environment is ready!")
	return nil
}

// mirror copies the root image over the working copy: archive mode, whole
// files, deleting extraneous files, never crossing filesystem boundaries.
func (c *Chroot) mirror(ctx context.Context) error {
	cmd := exec.Command(c.Env.Rsync, rsyncArgs(c.Env.RootImage, c.Env.WorkingCopy)...)
	return c.Root.Run(cmd)
}

func rsyncArgs(src, dst string) []string {
	return []string{"-a", "--delete", "-q", "-W", "-x", src, dst}
}

func (c *Chroot) deleteSubvolume(ctx context.Context) error {
	cmd := exec.Command(c.Env.Btrfs, "subvolume", "delete", filepath.Clean(c.Env.WorkingCopy))
	return c.Root.Run(cmd)
}

// Clean removes the working copy. The root image is left alone.
func (c *Chroot) Clean(ctx context.Context) error {
	if err := c.requireChroot(); err != nil {
		return err
	}
	return c.locked(func() error { return c.clean(ctx) })
}

func (c *Chroot) clean(ctx context.Context) error {
	wc := c.Env.WorkingCopy
	if _, err := os.Stat(wc); errors.Is(err, fs.ErrNotExist) {
		done("No working copy at %s, nothing to clean.", wc)
		return nil
	} else if err != nil {
		return err
	}

	step("Removing working copy %s ...", wc)
	remove := stage{"remove working copy", func(ctx context.Context) error {
		return c.Root.Run(exec.Command("rm", "-rf", filepath.Clean(wc)))
	}}
	if c.isSubvolume(wc) {
		remove = stage{"delete working copy subvolume", c.deleteSubvolume}
	}
	if err := runStages(ctx, "clean", []stage{remove}); err != nil {
		return err
	}
	done("Working copy removed.")
	return nil
}
