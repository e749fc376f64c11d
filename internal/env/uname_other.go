//go:build !(linux || freebsd || openbsd || darwin)

package env

func hostMachine() string {
	return ""
}
