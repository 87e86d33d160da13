package job

import (
	"os"

	"golang.org/x/sys/unix"
)

// tcsetpgrp hands foreground control of the terminal to the given process
// group.
func tcsetpgrp(tty *os.File, pgid int) error {
	return unix.IoctlSetPointerInt(int(tty.Fd()), unix.TIOCSPGRP, pgid)
}
