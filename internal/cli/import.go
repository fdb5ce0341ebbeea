package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/maruel/treksync/internal/docstore"
	"github.com/maruel/treksync/internal/trip"
)

// seed is a YAML file mapping paths to whole documents.
type seed map[string]any

// loadSeed reads path and converts every document to JSON. Documents at the
// path of a known kind are validated.
func loadSeed(path string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-provided seed file
	if err != nil {
		return nil, err
	}
	var s seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	out := make(map[string]json.RawMessage, len(s))
	for p, v := range s {
		if err := docstore.ValidatePath(p); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if k, err := trip.ParseKind(p); err == nil {
			if err := k.Validate(raw); err != nil {
				return nil, err
			}
		}
		out[p] = raw
	}
	return out, nil
}

func newImportCommand(app *App) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <seed.yaml>",
		Short: "Write each top-level key of a YAML file as a whole document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := loadSeed(args[0])
			if err != nil {
				return err
			}
			paths := slices.Sorted(maps.Keys(docs))
			if dryRun {
				for _, p := range paths {
					app.printf("%s: %d bytes\n", p, len(docs[p]))
				}
				return nil
			}
			env, err := app.Env(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range paths {
				if err := env.Store.Set(cmd.Context(), p, docs[p]); err != nil {
					return fmt.Errorf("%s: %w", p, err)
				}
				app.printf("%s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and list the documents without writing them")
	return cmd
}
