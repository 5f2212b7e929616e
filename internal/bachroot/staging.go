package bachroot

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"lukechampine.com/blake3"
)

// stageArtifacts copies each package file into the working copy's staging
// directory under its base name and returns the staged paths.
func (c *Chroot) stageArtifacts(ctx context.Context, artifacts []string) ([]string, error) {
	step("Staging %d package(s) into %s", len(artifacts), c.Env.StagingDir())

	bar := progressbar.NewOptions(len(artifacts),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("staging"),
		progressbar.OptionClearOnFinish(),
	)
	staged := make([]string, 0, len(artifacts))
	for _, src := range artifacts {
		sum, err := fileDigest(src)
		if err != nil {
			return staged, fmt.Errorf("cannot read %s: %w", src, err)
		}
		dest := c.Env.stagedPath(src)
		debugf("staging %s (blake3 %s) -> %s", src, sum, dest)

		if err := c.Root.Run(exec.Command("cp", src, dest)); err != nil {
			return staged, fmt.Errorf("failed to copy %s: %w", src, err)
		}
		staged = append(staged, dest)
		bar.Add(1)
	}
	bar.Finish()
	return staged, nil
}

// checkStagedNames rejects artifacts that would land on the same staged
// path.
func checkStagedNames(artifacts []string) error {
	seen := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		base := filepath.Base(a)
		if prev, ok := seen[base]; ok {
			return usagef("%s and %s share the file name %s", prev, a, base)
		}
		seen[base] = a
	}
	return nil
}

// installStaged installs every staged package inside the working copy in
// a single pacman run.
func (c *Chroot) installStaged(ctx context.Context, artifacts []string) error {
	args := []string{"pacman", "-U", "--noconfirm"}
	for _, a := range artifacts {
		args = append(args, inChrootPath(a))
	}
	step("Installing missing packages: %v", artifacts)
	return c.nspawn(c.Env.WorkingCopy, args...)
}

// clearStaged removes the staged package files.
func (c *Chroot) clearStaged(ctx context.Context, staged []string) error {
	if len(staged) == 0 {
		return nil
	}
	args := append([]string{"-f"}, staged...)
	return c.Root.Run(exec.Command("rm", args...))
}

// fileDigest returns the hex blake3-256 digest of the file at path.
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
