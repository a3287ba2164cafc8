package main

import (
	"io"

	"golang.org/x/crypto/ssh/terminal"
)

type fder interface {
	Fd() uintptr
}

// rawMode switches in into raw input mode if it is a terminal, so that
// a single keystroke is delivered without waiting for a newline.
// The returned function restores the previous state.
func rawMode(in io.Reader) (func(), error) {
	f, ok := in.(fder)
	if !ok {
		return func() {}, nil
	}
	fd := int(f.Fd())
	if !terminal.IsTerminal(fd) {
		return func() {}, nil
	}
	state, err := terminal.MakeRaw(fd)
	if err != nil {
		return func() {}, err
	}
	restore := func() { terminal.Restore(fd, state) }
	// Raw input only, instructions and request logs still need \n -> \r\n.
	if err := keepOutputProcessing(fd); err != nil {
		restore()
		return func() {}, err
	}
	return restore, nil
}

// readKey blocks until a single byte is read from in.
func readKey(in io.Reader) error {
	b := make([]byte, 1)
	_, err := io.ReadFull(in, b)
	return err
}
