// ABOUTME: Entry point for the multiplay player
// ABOUTME: Hands control to the cobra command tree and exits with its status
package main

import (
	"os"

	"github.com/Resonate-Protocol/multiplay/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
