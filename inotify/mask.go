package inotify

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Mask is a set of inotify event flags,
// as defined in <sys/inotify.h> with the IN_ prefix dropped.
// It serves both as the set of event classes a watch is interested in
// and as the description of what happened in a delivered Event.
type Mask uint32

const (
	Access       Mask = unix.IN_ACCESS        // File was accessed.
	Modify       Mask = unix.IN_MODIFY        // File was modified.
	Attrib       Mask = unix.IN_ATTRIB        // Metadata changed.
	CloseWrite   Mask = unix.IN_CLOSE_WRITE   // Writable file was closed.
	CloseNoWrite Mask = unix.IN_CLOSE_NOWRITE // Unwritable file was closed.
	Open         Mask = unix.IN_OPEN          // File was opened.
	MovedFrom    Mask = unix.IN_MOVED_FROM    // File was moved from X.
	MovedTo      Mask = unix.IN_MOVED_TO      // File was moved to Y.
	Create       Mask = unix.IN_CREATE        // Subfile was created.
	Delete       Mask = unix.IN_DELETE        // Subfile was deleted.
	DeleteSelf   Mask = unix.IN_DELETE_SELF   // Self was deleted.
	MoveSelf     Mask = unix.IN_MOVE_SELF     // Self was moved.

	Unmount   Mask = unix.IN_UNMOUNT    // Backing filesystem was unmounted.
	QOverflow Mask = unix.IN_Q_OVERFLOW // Event queue overflowed.
	Ignored   Mask = unix.IN_IGNORED    // Watch was removed.

	OnlyDir    Mask = unix.IN_ONLYDIR     // Only watch the path if it is a directory.
	DontFollow Mask = unix.IN_DONT_FOLLOW // Don't follow a symlink.
	ExclUnlink Mask = unix.IN_EXCL_UNLINK // Exclude events on unlinked objects.
	MaskAdd    Mask = unix.IN_MASK_ADD    // Add to the mask of an existing watch.
	IsDir      Mask = unix.IN_ISDIR       // Event occurred against a directory.
	OneShot    Mask = unix.IN_ONESHOT     // Only send the event once.
)

var maskNames = []struct {
	m    Mask
	name string
}{
	{Access, "ACCESS"},
	{Modify, "MODIFY"},
	{Attrib, "ATTRIB"},
	{CloseWrite, "CLOSE_WRITE"},
	{CloseNoWrite, "CLOSE_NOWRITE"},
	{Open, "OPEN"},
	{MovedFrom, "MOVED_FROM"},
	{MovedTo, "MOVED_TO"},
	{Create, "CREATE"},
	{Delete, "DELETE"},
	{DeleteSelf, "DELETE_SELF"},
	{MoveSelf, "MOVE_SELF"},
	{Unmount, "UNMOUNT"},
	{QOverflow, "Q_OVERFLOW"},
	{Ignored, "IGNORED"},
	{OnlyDir, "ONLYDIR"},
	{DontFollow, "DONT_FOLLOW"},
	{ExclUnlink, "EXCL_UNLINK"},
	{MaskAdd, "MASK_ADD"},
	{IsDir, "ISDIR"},
	{OneShot, "ONESHOT"},
}

// Has tells whether m contains every flag in other.
func (m Mask) Has(other Mask) bool {
	return m&other == other
}

// String renders m as flag names joined by |,
// e.g. CREATE|ISDIR.
// Bits with no name are rendered in hex.
func (m Mask) String() string {
	if m == 0 {
		return "0"
	}
	var names []string
	rest := m
	for _, n := range maskNames {
		if m&n.m != 0 {
			names = append(names, n.name)
			rest &^= n.m
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(names, "|")
}

// ParseMask parses a single flag name such as "create" or "DELETE_SELF",
// case-insensitively.
func ParseMask(name string) (Mask, error) {
	upper := strings.ToUpper(name)
	for _, n := range maskNames {
		if n.name == upper {
			return n.m, nil
		}
	}
	return 0, errors.Errorf("unknown inotify flag %q", name)
}
