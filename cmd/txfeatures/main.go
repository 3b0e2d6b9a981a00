package main

import "txfeatures/internal/cli"

func main() {
	cli.Execute()
}
