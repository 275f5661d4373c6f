package main

import "github.com/s22625/casetab/internal/cli"

func main() {
	cli.Execute()
}
