package main

import "facemorph/cmd"

func main() {
	cmd.Execute()
}
