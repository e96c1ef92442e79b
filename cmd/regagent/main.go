package main

import "github.com/bububa/regulation-agents/internal/cli"

func main() {
	cli.Execute()
}
