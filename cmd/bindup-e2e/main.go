package main

import (
	"fmt"
	"os"
)

func main() {
	code, err := execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(code)
}
