package main

import "github.com/mcoot/lobbynet/internal/cli"

func main() {
	cli.Execute()
}
