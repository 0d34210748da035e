//go:build windows

package cmd

func stdoutColumns() int { return 0 }
