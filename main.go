package main

import (
	"github.com/luma/exar/cmd"
)

func main() {
	cmd.Execute()
}
