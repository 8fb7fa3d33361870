package main

import (
	"fmt"
	"os"

	"github.com/zhengda-lu/devsweep/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "devsweep:", err)
		os.Exit(1)
	}
}
