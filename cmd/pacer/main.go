package main

import (
	"github.com/vietddude/pacer/internal/cli"
)

func main() {
	cli.Execute()
}
