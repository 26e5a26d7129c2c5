package main

import "tributary/cmd"

func main() {
	cmd.Execute()
}
