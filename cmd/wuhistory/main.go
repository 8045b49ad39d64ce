// Command wuhistory inspects and maintains a work unit history database.
package main

import (
	"os"

	"github.com/hfmnet/wuhistory/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
