package main

import "face-attendance-go/internal/cli"

func main() {
	cli.Execute()
}
