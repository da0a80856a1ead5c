// Command vybium-pep computes worst-case guarantees of the catalog methods.
//
//	vybium-pep run gradient_descent --param L=1 --param n=3 --proof
//	vybium-pep run --scenario drs.yaml --store ./results
//	vybium-pep show <digest> --store ./results
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatal(err.Error())
	}
}

func logStderr(msg string) {
	fmt.Fprintln(os.Stderr, "vybium-pep:", msg)
}

func fatal(msg string) {
	logStderr("ERROR: " + msg)
	os.Exit(1)
}
