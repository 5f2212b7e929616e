package bachroot

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupRefusesExistingDirectory(t *testing.T) {
	c, tb := newTestChroot(t)
	marker := filepath.Join(c.Env.ChrootDir, "keep-me")
	if err := os.MkdirAll(c.Env.ChrootDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(marker, []byte("precious"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := c.Setup(t.Context())
	if !errors.Is(err, ErrChrootExists) {
		t.Fatalf("err = %v, want ErrChrootExists", err)
	}
	if code := exitCode(err); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if got := listDir(t, c.Env.ChrootDir); len(got) != 1 || got[0] != "keep-me" {
		t.Fatalf("chroot dir contents changed: %v", got)
	}
	if data, _ := os.ReadFile(marker); string(data) != "precious" {
		t.Fatalf("marker = %q", data)
	}
	if calls := tb.calls(t); len(calls) != 0 {
		t.Fatalf("tools ran: %q", calls)
	}
}

func TestSetupRefusesExistingFile(t *testing.T) {
	c, tb := newTestChroot(t)
	if err := os.WriteFile(c.Env.ChrootDir, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Setup(t.Context()); !errors.Is(err, ErrChrootExists) {
		t.Fatalf("err = %v, want ErrChrootExists", err)
	}
	if calls := tb.calls(t); len(calls) != 0 {
		t.Fatalf("tools ran: %q", calls)
	}
}

func TestSetup(t *testing.T) {
	c, tb := newTestChroot(t)
	root, wc := c.Env.RootImage, c.Env.WorkingCopy

	if err := c.Setup(t.Context()); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	wantPrefixes := []string{
		"mkarchroot " + root + " base base-devel",
		"nspawn " + root + " /bin/sh -c printf",
		"nspawn " + root + " /bin/sh -c printf",
		"nspawn " + root + " curl -fsSL -o /strap.sh https://blackarch.org/strap.sh",
		"nspawn " + root + " sh /strap.sh",
		"nspawn " + root + " rm -f /strap.sh",
		"rsync -a --delete -q -W -x " + root + " " + wc,
	}
	calls := tb.calls(t)
	if len(calls) != len(wantPrefixes) {
		t.Fatalf("calls = %q, want %d calls", calls, len(wantPrefixes))
	}
	for i, want := range wantPrefixes {
		if !strings.HasPrefix(calls[i], want) {
			t.Errorf("call %d = %q, want prefix %q", i, calls[i], want)
		}
	}
	if !strings.Contains(calls[1], "[multilib]") || !strings.Contains(calls[1], "/etc/pacman.conf") {
		t.Errorf("multilib call = %q", calls[1])
	}
	if !strings.Contains(calls[2], "PKGEXT") || !strings.Contains(calls[2], "/etc/makepkg.conf") {
		t.Errorf("compression call = %q", calls[2])
	}

	if got := listDir(t, wc); len(got) == 0 {
		t.Fatal("working copy is empty after setup")
	}
}

func TestSetupStopsAtFailedBootstrap(t *testing.T) {
	c, tb := newTestChroot(t)
	tb.tool(t, "mkarchroot", "exit 1")

	err := c.Setup(t.Context())
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Stage != "bootstrap root image" {
		t.Fatalf("err = %v, want failure at bootstrap", err)
	}
	if _, err := os.Stat(c.Env.ChrootDir); err != nil {
		t.Fatalf("chroot dir should be left in place: %v", err)
	}
	if got := tb.callsTo(t, "nspawn"); len(got) != 0 {
		t.Fatalf("nspawn ran after a failed bootstrap: %q", got)
	}
}

func TestSetupMissingBootstrapTool(t *testing.T) {
	c, _ := newTestChroot(t)
	c.Env.Mkarchroot = filepath.Join(t.TempDir(), "mkarchroot")

	err := c.Setup(t.Context())
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Tool != c.Env.Mkarchroot {
		t.Fatalf("err = %v, want ToolError for %s", err, c.Env.Mkarchroot)
	}
}

func TestAppendLinesScript(t *testing.T) {
	conf := filepath.Join(t.TempDir(), "pacman.conf")
	if err := os.WriteFile(conf, []byte("[core]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	script, err := appendLinesScript(conf, "", "[multilib]", "Include = /etc/pacman.d/mirrorlist", "PKGEXT='.pkg.tar.zst'")
	if err != nil {
		t.Fatal(err)
	}
	if out, err := exec.Command("/bin/sh", "-c", script).CombinedOutput(); err != nil {
		t.Fatalf("script %q failed: %v: %s", script, err, out)
	}

	got, err := os.ReadFile(conf)
	if err != nil {
		t.Fatal(err)
	}
	want := "[core]\n\n[multilib]\nInclude = /etc/pacman.d/mirrorlist\nPKGEXT='.pkg.tar.zst'\n"
	if string(got) != want {
		t.Fatalf("file = %q, want %q", got, want)
	}
}

func TestUpdate(t *testing.T) {
	c, tb := newTestChroot(t)
	makeRootImage(t, c)

	if err := c.Update(t.Context()); err != nil {
		t.Fatal(err)
	}
	calls := tb.calls(t)
	if len(calls) != 2 {
		t.Fatalf("calls = %q", calls)
	}
	if want := "nspawn " + c.Env.RootImage + " pacman --noconfirm -Syuu"; calls[0] != want {
		t.Errorf("call 0 = %q, want %q", calls[0], want)
	}
	if !strings.HasPrefix(calls[1], "rsync ") {
		t.Errorf("call 1 = %q, want the sync", calls[1])
	}
}

func TestUpdateFailureSkipsSync(t *testing.T) {
	c, tb := newTestChroot(t)
	makeRootImage(t, c)
	tb.tool(t, "nspawn", "exit 1")

	if err := c.Update(t.Context()); err == nil {
		t.Fatal("expected an error")
	}
	if got := tb.callsTo(t, "rsync"); len(got) != 0 {
		t.Fatalf("sync ran after failed upgrade: %q", got)
	}
}

func TestUpdateRequiresChroot(t *testing.T) {
	c, tb := newTestChroot(t)
	if err := c.Update(t.Context()); !errors.Is(err, ErrNoChroot) {
		t.Fatalf("err = %v, want ErrNoChroot", err)
	}
	if calls := tb.calls(t); len(calls) != 0 {
		t.Fatalf("tools ran: %q", calls)
	}
}
