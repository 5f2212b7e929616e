package bachroot

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// instanceLock is an exclusive flock held for the duration of one
// operation that mutates the chroot.
type instanceLock struct {
	f *os.File
}

// acquireLock takes the lock without blocking. A lock already held by any
// other open file description fails with ErrLocked.
func acquireLock(path string) (*instanceLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w (lock held on %s)", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	// Record the holder for whoever trips over the lock.
	if err := f.Truncate(0); err == nil {
		f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	debugf("acquired lock %s", path)
	return &instanceLock{f: f}, nil
}

func (l *instanceLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	defer func() { l.f = nil }()
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return l.f.Close()
}
