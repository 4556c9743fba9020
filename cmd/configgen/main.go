package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sio6/gateway/internal/config"
)

func main() {
	path := flag.String("out", "config.yaml", "path to write the generated config file")
	flag.Parse()

	mgr := config.NewManager(*path)
	if err := mgr.WriteDefault(); err != nil {
		fail(err)
	}

	fmt.Printf("wrote default config to %s\n", *path)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
	os.Exit(1)
}
