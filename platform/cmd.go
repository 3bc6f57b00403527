package platform

import (
	"context"
	"log"
	"os/exec"
)

// RunCmd runs name with a timeout carried by ctx, logging stderr on failure.
func RunCmd(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			log.Printf("subprocess error [%s %v]: %v, stderr: %s", name, args, err, string(exitErr.Stderr))
		} else {
			log.Printf("subprocess error [%s %v]: %v", name, args, err)
		}
	}
	return out, err
}

// RunCmdPlain runs name without a context deadline.
func RunCmdPlain(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			log.Printf("subprocess error [%s %v]: %v, stderr: %s", name, args, err, string(exitErr.Stderr))
		} else {
			log.Printf("subprocess error [%s %v]: %v", name, args, err)
		}
	}
	return out, err
}
