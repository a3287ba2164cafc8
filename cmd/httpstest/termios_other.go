//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

package main

func keepOutputProcessing(fd int) error {
	return nil
}
