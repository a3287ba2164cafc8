//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package main

import "golang.org/x/sys/unix"

func withOutputProcessing(t *unix.Termios) {
	t.Oflag |= unix.OPOST | unix.ONLCR
}

func keepOutputProcessing(fd int) error {
	t, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return err
	}
	withOutputProcessing(t)
	return unix.IoctlSetTermios(fd, ioctlWriteTermios, t)
}
