package bachroot

import (
	"fmt"
	"path/filepath"
)

// Fixed layout and tool defaults. The chroot layout is not configurable;
// only tool locations can be overridden through the config file or env.
const (
	chrootDirName   = "blackarch_chroot"
	rootImageName   = "root"
	workingCopyName = "blackarch"
	lockFileName    = ".blackarch_chroot.lock"
	defaultInstance = "blackarch"
	defaultStrapURL = "https://blackarch.org/strap.sh"
	// stagingDirName is /root inside the working copy.
	stagingDirName = "root"
)

// Key names one resolved Environment value.
type Key int

const (
	KeyHomeDir Key = iota
	KeyChrootDir
	KeyRootImage
	KeyWorkingCopy
	KeyMkarchroot
	KeyNspawn
	KeyMakechrootpkg
	KeyPacman
	KeyInstance
)

var keyNames = [...]string{
	KeyHomeDir:       "home_dir",
	KeyChrootDir:     "chroot_dir",
	KeyRootImage:     "chroot_root",
	KeyWorkingCopy:   "chroot_blackarch",
	KeyMkarchroot:    "mkarchroot",
	KeyNspawn:        "nspawn",
	KeyMakechrootpkg: "makechrootpkg",
	KeyPacman:        "pacman",
	KeyInstance:      "blackarch_instance",
}

func (k Key) String() string {
	if k < 0 || int(k) >= len(keyNames) {
		return fmt.Sprintf("Key(%d)", int(k))
	}
	return keyNames[k]
}

// Environment holds every path and tool location the workflow needs.
// It is resolved once per invocation.
type Environment struct {
	HomeDir     string
	ChrootDir   string
	RootImage   string // trailing slash, so rsync copies contents
	WorkingCopy string // trailing slash
	LockPath    string
	LogDir      string

	Mkarchroot    string
	Nspawn        string
	Makechrootpkg string
	Pacman        string
	Rsync         string
	Btrfs         string
	Linter        string

	Instance string
	StrapURL string
}

// ResolveEnvironment derives the Environment from HOME and the fixed layout.
// cfg may be nil.
func ResolveEnvironment(getenv func(string) string, cfg *Config) (*Environment, error) {
	home := getenv("HOME")
	if home == "" {
		return nil, ErrNoHome
	}
	home = filepath.Clean(home)
	chrootDir := filepath.Join(home, chrootDirName)

	env := &Environment{
		HomeDir:     home,
		ChrootDir:   chrootDir,
		RootImage:   filepath.Join(chrootDir, rootImageName) + "/",
		WorkingCopy: filepath.Join(chrootDir, workingCopyName) + "/",
		LockPath:    filepath.Join(home, lockFileName),
		LogDir:      filepath.Join(chrootDir, "logs"),

		Mkarchroot:    cfg.get("BACHROOT_MKARCHROOT", "/usr/bin/mkarchroot"),
		Nspawn:        cfg.get("BACHROOT_NSPAWN", "/usr/bin/arch-nspawn"),
		Makechrootpkg: cfg.get("BACHROOT_MAKECHROOTPKG", "/usr/bin/makechrootpkg"),
		Pacman:        cfg.get("BACHROOT_PACMAN", "/usr/bin/pacman"),
		Rsync:         cfg.get("BACHROOT_RSYNC", "rsync"),
		Btrfs:         cfg.get("BACHROOT_BTRFS", "btrfs"),
		Linter:        cfg.get("BACHROOT_LINTER", "namcap"),

		Instance: defaultInstance,
		StrapURL: cfg.get("BACHROOT_STRAP_URL", defaultStrapURL),
	}
	debugf("resolved environment: chroot=%s root=%s copy=%s", env.ChrootDir, env.RootImage, env.WorkingCopy)
	return env, nil
}

// Lookup returns the value for k. Keys outside the enumeration fail with
// ErrUnknownKey.
func (e *Environment) Lookup(k Key) (string, error) {
	switch k {
	case KeyHomeDir:
		return e.HomeDir, nil
	case KeyChrootDir:
		return e.ChrootDir, nil
	case KeyRootImage:
		return e.RootImage, nil
	case KeyWorkingCopy:
		return e.WorkingCopy, nil
	case KeyMkarchroot:
		return e.Mkarchroot, nil
	case KeyNspawn:
		return e.Nspawn, nil
	case KeyMakechrootpkg:
		return e.Makechrootpkg, nil
	case KeyPacman:
		return e.Pacman, nil
	case KeyInstance:
		return e.Instance, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKey, k)
}

// StagingDir is where missing dependency packages are copied: the working
// copy's /root.
func (e *Environment) StagingDir() string {
	return filepath.Join(e.WorkingCopy, stagingDirName)
}

// stagedPath maps a package file on the host to its staged location. Only
// the base name is kept.
func (e *Environment) stagedPath(artifact string) string {
	return filepath.Join(e.StagingDir(), filepath.Base(artifact))
}

// inChrootPath is the path of a staged package as seen from inside the
// working copy.
func inChrootPath(artifact string) string {
	return "/" + stagingDirName + "/" + filepath.Base(artifact)
}
