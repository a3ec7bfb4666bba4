// configgen writes a commented starter config for luxbridged, or validates
// an existing one.
package main

import (
	"flag"
	"log"

	"github.com/luxbridge/luxbridge/internal/config"
)

func main() {
	output := flag.String("output", "luxbridge.toml", "output path for the config template")
	validate := flag.String("validate", "", "validate an existing config file instead of writing one")
	force := flag.Bool("force", false, "overwrite an existing config file")
	flag.Parse()

	if *validate != "" {
		if _, err := config.Load(*validate); err != nil {
			log.Fatal(err)
		}
		log.Printf("validated config at %s", *validate)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote config template to %s", *output)
}
