package main

import "github.com/vkhitrin/cosmicding-sub000/cmd"

func main() {
	cmd.Execute()
}
