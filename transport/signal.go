package transport

import "syscall"

// processTerminateSignal is the graceful-termination signal sent to the agent
// child before the kill-grace escalation. Grounded on the teacher's
// integration_tests/framework/runner.go stopServer, which escalates
// SIGINT -> SIGTERM -> Kill for its HTTP test server; the harness's one-shot
// agent child only needs a single graceful signal before the hard kill.
func processTerminateSignal() syscall.Signal {
	return syscall.SIGTERM
}
