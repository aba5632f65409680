//go:build !windows

package commands

const ttyPath = "/dev/tty"
