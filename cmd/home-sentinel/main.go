package main

import "github.com/oshokin/home-sentinel/cmd/home-sentinel/cmd"

func main() {
	cmd.Execute()
}
