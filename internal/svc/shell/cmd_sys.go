package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rosh/internal/kernel"
)

var errNoArgs = errors.New("takes no arguments")

func runTime(_ context.Context, k *kernel.Kernel, _ *env, args []string) string {
	fs := newFlags("time")
	if out, ok := parse(fs, args); !ok {
		return out
	}
	if fs.NArg() != 0 {
		return usage(fs, errNoArgs)
	}
	return fmt.Sprintf("System clock:\nTimestamp: %s\nUNIX Epoch (mills): %d\n",
		k.Timestamp(), k.Time().UnixMilli())
}

func runTop(_ context.Context, k *kernel.Kernel, _ *env, args []string) string {
	fs := newFlags("top")
	if out, ok := parse(fs, args); !ok {
		return out
	}
	if fs.NArg() != 0 {
		return usage(fs, errNoArgs)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %6s %10s %6s %6s\n", "Process Name", "PID", "STEPS", "IN", "OUT")
	for _, p := range k.Processes() {
		fmt.Fprintf(&b, "%-20s %6d %10d %6d %6d\n", p.Name, p.PID, p.Steps, p.MessagesIn, p.MessagesOut)
	}
	return b.String()
}
