package main

import "github.com/theirongolddev/opsdash/cmd"

func main() {
	cmd.Execute()
}
