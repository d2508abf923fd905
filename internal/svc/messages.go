package svc

// Process names as they appear in the process table.
const (
	ClockProcess = "system_clock"
	ShellProcess = "shell"
	DemoProcess  = "demo"
)

const (
	User     = "user"
	Hostname = "r-os"
)
