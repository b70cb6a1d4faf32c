package main

import "docextract/cmd"

func main() {
	cmd.Execute()
}
