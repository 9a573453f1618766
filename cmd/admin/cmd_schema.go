package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cobra"

	"simbridge.dev/internal/protocol"
)

// schemaFiles maps engine link message types to their schema file.
var schemaFiles = map[string]string{
	protocol.TypeHello:        "hello.schema.json",
	protocol.TypeWelcome:      "welcome.schema.json",
	protocol.TypeFrame:        "frame.schema.json",
	protocol.TypeScript:       "script.schema.json",
	protocol.TypeScriptResult: "script_result.schema.json",
}

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Engine link message schemas",
	}
	cmd.AddCommand(newSchemaValidateCmd())
	return cmd
}

func newSchemaValidateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate captured engine link messages against their schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				if err := validateMessage(dir, path); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("schema validate: %d of %d files invalid", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "schemas", "./schemas", "directory holding *.schema.json")
	return cmd
}

func validateMessage(dir, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	name, ok := schemaFiles[strings.ToUpper(base.Type)]
	if !ok {
		return fmt.Errorf("no schema for message type %q", base.Type)
	}
	s, err := jsonschema.Compile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("compile %s: %w", name, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
