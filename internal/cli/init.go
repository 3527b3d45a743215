package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/larder/internal/paths"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// configFile holds the structure written to config.yaml.
type configFile struct {
	Backend   string `yaml:"backend"`
	DataDir   string `yaml:"data_dir,omitempty"`
	ModelFile string `yaml:"model_file,omitempty"`
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize larder configuration and storage",
		Long: "Create the configuration directory and config.yaml, then create the\n" +
			"database schema from the schema document if one is present.",
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := writeConfigIfMissing(configPath(configDir), flags.dataDir, flags.modelFile); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.ModelFile); errors.Is(err, os.ErrNotExist) {
		printWarning(cmd.OutOrStdout(), "no schema document at %s; the database is created on first use", cfg.ModelFile)
		return nil
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.store.EnsureDatabaseConsistency(); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	printSuccess(cmd.OutOrStdout(), "larder initialized: %s (model version %s)", s.store.Path(), s.model.Version())
	return nil
}

// writeConfigIfMissing creates config.yaml if the file does not exist. An
// existing file is left untouched.
func writeConfigIfMissing(path, dataDir, modelFile string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	cfg := configFile{
		Backend:   types.BackendSQLite,
		DataDir:   dataDir,
		ModelFile: modelFile,
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
