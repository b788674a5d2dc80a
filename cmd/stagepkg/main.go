package main

import (
	"github.com/stagepkg/stagepkg/pkg/cmd"
)

func main() {
	cmd.Execute()
}
