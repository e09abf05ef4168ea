// Command oxy-bridge replays scripted host sessions against the bridge.
package main

import "github.com/Carmen-Shannon/oxy-bridge/cmd/oxy-bridge/internal/command"

func main() {
	command.Execute()
}
