package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/larder/internal/paths"
	"github.com/mesh-intelligence/larder/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	envPrefix = "LARDER"

	cfgKeyBackend            = "backend"
	cfgKeyDataDir            = "data_dir"
	cfgKeyDatabaseFile       = "database_file"
	cfgKeyModelFile          = "model_file"
	cfgKeyModelVersion       = "model_version"
	cfgKeyLogLevel           = "log_level"
	cfgKeySlowQueryThreshold = "slow_query_threshold"
)

// loadDotEnv loads .env from the working directory into the process
// environment. A missing file is not an error.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: .env:", err)
	}
}

// loadConfig reads config.yaml from configDir and LARDER_* environment
// variables. A missing config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// resolveConfig merges flags, config.yaml and the environment into a
// validated store configuration.
func resolveConfig() (types.Config, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return types.Config{}, err
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	modelFile, err := paths.ResolveModelFile(flags.modelFile, v.GetString(cfgKeyModelFile), configDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve model file: %w", err)
	}

	cfg := types.Config{
		Backend:            v.GetString(cfgKeyBackend),
		DataDir:            dataDir,
		DatabaseFile:       v.GetString(cfgKeyDatabaseFile),
		ModelFile:          modelFile,
		ModelVersion:       firstNonEmpty(flags.modelVersion, v.GetString(cfgKeyModelVersion)),
		LogLevel:           firstNonEmpty(flags.logLevel, v.GetString(cfgKeyLogLevel)),
		SlowQueryThreshold: v.GetDuration(cfgKeySlowQueryThreshold),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func configPath(configDir string) string {
	return filepath.Join(configDir, configFileExt)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
