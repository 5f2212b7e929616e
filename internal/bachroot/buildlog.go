package bachroot

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/ulikunitz/xz"
)

const buildLogPattern = "build-*.log.xz"

// buildLog is an xz-compressed capture of one builder run.
type buildLog struct {
	path string
	f    *os.File
	xw   *xz.Writer
}

func createBuildLog(dir string, now time.Time) (*buildLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, "build-"+now.Format("20060102-150405")+".log.xz")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	xw, err := xz.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &buildLog{path: path, f: f, xw: xw}, nil
}

func (l *buildLog) Write(p []byte) (int, error) {
	return l.xw.Write(p)
}

func (l *buildLog) Close() error {
	if err := l.xw.Close(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// latestBuildLog returns the newest build log in dir. Names embed the
// timestamp, so lexical order is chronological.
func latestBuildLog(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, buildLogPattern))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoBuildLog, dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

// copyBuildLog decompresses the log at path into w.
func copyBuildLog(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	xr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("error creating xz reader: %w", err)
	}
	_, err = io.Copy(w, xr)
	return err
}

// showBuildLog pipes the decompressed log through $PAGER, falling back to
// plain stdout when the pager cannot run.
func showBuildLog(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	xr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("error creating xz reader: %w", err)
	}

	pager := os.Getenv("PAGER")
	var args []string
	if pager == "" {
		pager = "less"
		args = []string{"-R"}
	} else if pager == "less" {
		args = []string{"-R"}
	}

	cmd := exec.CommandContext(ctx, pager, args...)
	cmd.Stdin = xr
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		debugf("pager %s failed: %v", pager, err)
		return copyBuildLog(path, os.Stdout)
	}
	return nil
}
