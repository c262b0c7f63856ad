package main

import "github.com/eventops/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
