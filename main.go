package main

import "castgrab/cmd"

func main() {
	cmd.Execute()
}
