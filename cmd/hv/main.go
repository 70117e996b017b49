package main

import (
	"log"

	"hashvault/cmd/hv/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatal(err)
	}
}
