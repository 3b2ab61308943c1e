// Command generate-schema writes the JSON schema of the nsctl config file,
// for editor completion of config.yaml. The output path defaults to
// config.schema.json; "-" writes to stdout.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/nameserver/pkg/config"
)

func schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		FieldNameTag:   "yaml",
	}

	s := reflector.Reflect(&config.Config{})
	s.Title = "Name Server Configuration"
	s.Description = "Configuration of nsctl and the name server (storage, namespace geometry, id generators, gc)"
	return s
}

func write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(schema())
}

func run(args []string) error {
	target := "config.schema.json"
	if len(args) > 0 {
		target = args[0]
	}

	if target == "-" {
		return write(os.Stdout)
	}

	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "schema written to %s\n", target)
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "generate-schema: %v\n", err)
		os.Exit(1)
	}
}
