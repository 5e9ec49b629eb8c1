package main

import "go-acordeon/cmd"

func main() {
	cmd.Execute()
}
