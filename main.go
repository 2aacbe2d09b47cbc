package main

import "couchtransfer/cmd"

func main() {
	cmd.Execute()
}
