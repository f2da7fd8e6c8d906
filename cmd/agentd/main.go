// Command agentd is the daemon's process entrypoint.
package main

func main() {
	Execute()
}
