package main

import (
	"os"

	"github.com/malbeclabs/oracle-mcp/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
