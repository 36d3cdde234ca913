package main

import "github.com/encodeous/fuzzyrpl/cmd"

func main() {
	cmd.Execute()
}
