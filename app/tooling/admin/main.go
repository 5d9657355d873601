// This program performs administrative tasks for the ledger node.
package main

import (
	"fmt"
	"os"

	"github.com/ardanlabs/ledger/app/tooling/admin/cmd"
	"github.com/ardanlabs/ledger/foundation/logger"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN", "stderr")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cmd.Execute(build, log); err != nil {
		log.Errorw("admin", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}
