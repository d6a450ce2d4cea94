package main

import "github.com/iksnae/nox-session/cmd"

func main() {
	cmd.Execute()
}
