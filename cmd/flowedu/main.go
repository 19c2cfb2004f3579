package main

import (
	"os"

	"github.com/EberSantana/flowedu-sub004/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
