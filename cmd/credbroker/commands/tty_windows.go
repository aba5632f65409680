//go:build windows

package commands

const ttyPath = "CONIN$"
