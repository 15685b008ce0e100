package main

import (
	"github.com/deamwork/aad-seed/cmd"
)

var (
	Version = "dev"
)

func main() {
	cmd.Execute(Version)
}
