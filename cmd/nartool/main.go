package main

import "github.com/aweris/narcache/cmd/nartool/cmd"

func main() {
	cmd.Execute()
}
