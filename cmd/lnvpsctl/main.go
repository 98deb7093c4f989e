// Command lnvpsctl manages LNVPS virtual machines and their payments.
package main

import "os"

var version = "dev"

func main() {
	if err := Execute(version); err != nil {
		os.Exit(1)
	}
}
