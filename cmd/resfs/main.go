// Command resfs inspects and edits resources through a resfs mount table.
package main

import (
	"log"
	"os"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
