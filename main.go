package main

import "github.com/conversa/cli/cmd"

func main() {
	cmd.Execute()
}
