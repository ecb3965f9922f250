package main

import "github.com/panyam/pfa/cmd/pfa/commands"

func main() {
	commands.Execute()
}
