package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/josephgoksu/genesis/internal/config"
	"github.com/josephgoksu/genesis/internal/logger"
)

var (
	// settings is the validated configuration for the running command.
	settings *config.Settings
	// logLevel is shared with the slog handler so `serve` can change it
	// when the config file is edited.
	logLevel = new(slog.LevelVar)
)

// initConfig reads .env, the config file and the environment, then
// configures logging. Called before every command.
func initConfig() error {
	// A missing .env is normal.
	_ = godotenv.Load()

	settings = nil
	viper.Reset()
	config.SetDefaults()
	config.BindEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(config.ConfigName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigName) // ./.genesis/.genesis.yaml
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && cfgFile == "":
		case errors.As(err, &notFound), os.IsNotExist(err):
			return fmt.Errorf("config file not found: %s", cfgFile)
		default:
			return fmt.Errorf("read config file %s: %w", viper.ConfigFileUsed(), err)
		}
	}

	configureLogging(viper.GetString("log.level"), viper.GetString("log.format"))
	logger.SetCrashDir(config.CrashLogDir())
	if used := viper.ConfigFileUsed(); used != "" {
		slog.Debug("using config file", "path", used)
	}

	s, err := config.Load()
	if err != nil {
		return err
	}
	settings = s
	return nil
}

func configureLogging(level, format string) {
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	logLevel.Set(lvl)
	slog.SetDefault(logger.New(os.Stderr, format, logLevel))
}

// watchConfig re-applies the log level whenever the config file changes
// and hands the change to onChange.
func watchConfig(onChange func()) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if lvl, err := logger.ParseLevel(viper.GetString("log.level")); err == nil && !verbose {
			logLevel.Set(lvl)
		}
		slog.Info("config file changed", "path", e.Name, "log_level", logLevel.Level().String())
		if onChange != nil {
			onChange()
		}
	})
	viper.WatchConfig()
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a starter .genesis.yaml",
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		global, _ := cmd.Flags().GetBool("global")
		force, _ := cmd.Flags().GetBool("force")

		path := config.ConfigName + ".yaml"
		if global {
			dir, err := config.GlobalDir()
			if err != nil {
				return fmt.Errorf("resolve home directory: %w", err)
			}
			path = filepath.Join(filepath.Dir(dir), config.ConfigName+".yaml")
		}

		s := settings
		if s == nil {
			s = defaultSettings()
		}
		if err := config.WriteStarter(path, s, force); err != nil {
			if errors.Is(err, config.ErrConfigExists) {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *settings
		if shown.Telemetry.APIKey != "" {
			shown.Telemetry.APIKey = "********"
		}
		out, err := yaml.Marshal(shown)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", used)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// defaultSettings is used when the current configuration is invalid.
func defaultSettings() *config.Settings {
	viper.Reset()
	config.SetDefaults()
	var s config.Settings
	_ = viper.Unmarshal(&s)
	return &s
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().Bool("global", false, "write to $HOME/.genesis.yaml instead of the current directory")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
