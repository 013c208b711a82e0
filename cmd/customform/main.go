package main

import (
	"log"
	"os"

	"github.com/dalemusser/customform/daemon"
	"github.com/dalemusser/customform/internal/app/bootstrap"
)

func main() {
	cfg := daemon.Config{
		Name:        "customform",
		DisplayName: "Custom Form",
		Description: "Contact settings forms, live validation and one-time login links.",
	}
	if err := daemon.Main(cfg, bootstrap.Hooks, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
