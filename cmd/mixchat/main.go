// Command mixchat runs the mixchat gateway and its admin commands.
package main

import (
	"fmt"
	"os"

	"mixchat/internal/cli"
	"mixchat/pkg/logger"
)

func main() {
	err := cli.NewRootCmd().Execute()
	_ = logger.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
