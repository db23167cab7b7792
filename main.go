package main

import "tiksound/cmd"

func main() {
	cmd.Execute()
}
