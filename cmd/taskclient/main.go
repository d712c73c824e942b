// Command taskclient is a terminal client for the Task API.
package main

import (
	"os"

	"github.com/nhle/taskclient/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
