package main

import "github.com/mgarridoch/breakfast-alarm/cmd/breakfast-alarmd/cmd"

func main() {
	cmd.Execute()
}
