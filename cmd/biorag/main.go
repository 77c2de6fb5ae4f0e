package main

import "biorag/internal/cli"

func main() {
	cli.Execute()
}
