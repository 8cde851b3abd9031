// Command clubflow reviews and decides club event proposals and venue bookings.
package main

import "clubflow/internal/cli"

func main() {
	cli.Execute()
}
