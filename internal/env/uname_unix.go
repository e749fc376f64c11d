//go:build linux || freebsd || openbsd || darwin

package env

import (
	"golang.org/x/sys/unix"
)

func hostMachine() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return ""
	}
	return unix.ByteSliceToString(u.Machine[:])
}
