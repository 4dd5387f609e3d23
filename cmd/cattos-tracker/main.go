package main

import "cattos-tracker/internal/cli"

func main() {
	cli.Execute()
}
