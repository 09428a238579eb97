package main

import "github.com/ethpandaops/godwoken-proxy/cmd"

func main() {
	cmd.Execute()
}
