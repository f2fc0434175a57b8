package main

import "github.com/mgarridoch/breakfast-alarm/cmd/breakfast-alarm/cmd"

func main() {
	cmd.Execute()
}
