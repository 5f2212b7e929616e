package bachroot

import "golang.org/x/sys/unix"

const (
	btrfsSuperMagic = 0x9123683E
	// Subvolume roots always carry this inode number on btrfs.
	btrfsSubvolumeIno = 256
)

// isBtrfsSubvolume reports whether path is the root of a btrfs subvolume.
func isBtrfsSubvolume(path string) bool {
	var sfs unix.Statfs_t
	if err := unix.Statfs(path, &sfs); err != nil {
		debugf("statfs %s: %v", path, err)
		return false
	}
	if uint32(sfs.Type) != btrfsSuperMagic {
		return false
	}
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		debugf("stat %s: %v", path, err)
		return false
	}
	return st.Ino == btrfsSubvolumeIno
}
