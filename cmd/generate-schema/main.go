// Command generate-schema emits a JSON schema for the mountkeep
// configuration file.
//
// The schema can be used for:
//   - IDE autocompletion (VS Code, IntelliJ, etc.)
//   - Configuration file validation
//   - Documentation generation
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/marmos91/mountkeep/pkg/config"
)

func main() {
	output := flag.String("output", "", "Output file (default: stdout)")
	flag.Parse()

	if err := run(*output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(output string) error {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Version = "https://json-schema.org/draft/2020-12/schema"
	schema.Title = "mountkeep Configuration"
	schema.Description = "Configuration schema for the mountkeep daemon"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if output != "" {
		if err := os.WriteFile(output, schemaJSON, 0644); err != nil {
			return fmt.Errorf("failed to write schema file: %w", err)
		}
		fmt.Printf("JSON schema written to %s\n", output)
		return nil
	}

	fmt.Println(string(schemaJSON))
	return nil
}
