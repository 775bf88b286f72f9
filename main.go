package main

import "github.com/ikanisa/dar-ingest/cmd"

func main() {
	cmd.Execute()
}
