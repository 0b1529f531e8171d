// Command phasecore is a thin Message-in/Response-out harness around
// internal/orchestrator.ProcessState: it is not a worker, only a transport
// shim a worker or script can shell out to.
package main

func main() {
	Execute()
}
