package bachroot

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// toolbox writes fake external tools that record each invocation as
// "<name> <args...>" in a shared calls log.
type toolbox struct {
	dir string
	log string
}

func newToolbox(t *testing.T) *toolbox {
	t.Helper()
	dir := t.TempDir()
	return &toolbox{dir: dir, log: filepath.Join(dir, "calls.log")}
}

// tool (re)writes an executable named name whose body runs after the call
// is recorded, and returns its path.
func (tb *toolbox) tool(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(tb.dir, name)
	script := "#!/bin/sh\nprintf '%s\\n' \"" + name + " $*\" >> '" + tb.log + "'\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}
	return path
}

func (tb *toolbox) calls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(tb.log)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read calls log: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// callsTo returns the recorded invocations of one tool.
func (tb *toolbox) callsTo(t *testing.T, name string) []string {
	t.Helper()
	var out []string
	for _, c := range tb.calls(t) {
		if c == name || strings.HasPrefix(c, name+" ") {
			out = append(out, c)
		}
	}
	return out
}

// fakeRsync copies the second-to-last argument's contents into the last.
const fakeRsync = `for a; do src=$dst; dst=$a; done
mkdir -p "$dst" && cp -a "$src". "$dst"`

func newTestChroot(t *testing.T) (*Chroot, *toolbox) {
	t.Helper()
	home := t.TempDir()
	tb := newToolbox(t)
	cfg := &Config{Values: map[string]string{
		"BACHROOT_MKARCHROOT":    tb.tool(t, "mkarchroot", `mkdir -p "$1" && touch "$1/marker"`),
		"BACHROOT_NSPAWN":        tb.tool(t, "nspawn", ""),
		"BACHROOT_MAKECHROOTPKG": tb.tool(t, "makechrootpkg", `echo "==> Making package: demo"`),
		"BACHROOT_PACMAN":        tb.tool(t, "pacman", ""),
		"BACHROOT_RSYNC":         tb.tool(t, "rsync", fakeRsync),
		"BACHROOT_BTRFS":         tb.tool(t, "btrfs", ""),
		"BACHROOT_LINTER":        "namcap",
	}}
	env, err := ResolveEnvironment(func(key string) string {
		if key == "HOME" {
			return home
		}
		return ""
	}, cfg)
	if err != nil {
		t.Fatalf("ResolveEnvironment: %v", err)
	}

	ctx := context.Background()
	c := NewChroot(env, &Executor{Context: ctx}, &Executor{Context: ctx})
	c.isSubvolume = func(string) bool { return false }
	c.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	c.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return c, tb
}

// makeRootImage creates the chroot with a small root image in it.
func makeRootImage(t *testing.T, c *Chroot) {
	t.Helper()
	for _, dir := range []string{"etc", "root", "usr/bin"} {
		if err := os.MkdirAll(filepath.Join(c.Env.RootImage, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(c.Env.RootImage, "etc", "pacman.conf"), []byte("[core]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
