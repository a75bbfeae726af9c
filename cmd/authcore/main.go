// Command authcore serves the session API over HTTP and provides
// maintenance tooling.
//
//	authcore serve --config config.yaml [--seed-user name:password]
//	authcore migrate --config config.yaml
//	authcore loadtest --token-backend redis --users 1000
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
