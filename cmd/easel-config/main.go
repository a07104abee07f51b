package main

import (
	"flag"
	"log"

	"easel/internal/config"
)

func main() {
	output := flag.String("output", "easel.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "easel.toml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if _, err := config.LoadServerConfig(*input); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated config at %s", *input)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote config template to %s", *output)
}
