package main

import (
	"flag"
	"log"
	"os"

	"github.com/spf13/cobra/doc"

	"github.com/zhengda-lu/devsweep/internal/cli"
)

func main() {
	dir := flag.String("dir", "./docs/man", "Output directory for man pages")
	flag.Parse()

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatal(err)
	}
	header := &doc.GenManHeader{
		Title:   "DEVSWEEP",
		Section: "1",
	}
	if err := doc.GenManTree(cli.RootCmd(), header, *dir); err != nil {
		log.Fatal(err)
	}
}
