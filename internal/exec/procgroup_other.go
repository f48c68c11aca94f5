//go:build !unix

package exec

import "os/exec"

// killProcessGroup is a no-op where process groups are unavailable; WaitDelay
// still bounds how long a cancelled command can block.
func killProcessGroup(cmd *exec.Cmd) {}
