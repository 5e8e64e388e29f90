package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// exitErr prints an error and terminates. All fatal setup failures
// route through here so the exit behavior stays uniform.
func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// printJSON writes a document as indented JSON to stdout, used by the
// --json output mode of every command.
func printJSON(doc any) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		exitErr(err)
	}
	fmt.Println(string(data))
}
