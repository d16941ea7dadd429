package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"image-annotator/internal/config"
	"image-annotator/internal/logging"
	"image-annotator/internal/version"
)

// env is shared by the subcommands once the root has initialized it.
type env struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *slog.Logger
}

// RootCommand creates and returns the root command.
func RootCommand() *cobra.Command {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:           "annotool",
		Short:         "Image annotator command line tools",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, e)

	configCmd := configCommand()
	subcommands := []*cobra.Command{
		detectCommand(e),
		exportCommand(e),
		renderCommand(e),
		configCmd,
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Printing the defaults must work even when the config file is broken.
		if cmd.Name() == configCmd.Name() {
			return nil
		}
		return e.initialize(cmd)
	}
	return rootCmd
}

// initialize loads the configuration and sets up logging.
func (e *env) initialize(cmd *cobra.Command) error {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return err
	}
	if lvl := viper.GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, logging.Format(cfg.Log.Format))
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.log = logger
	return nil
}

func setupFlags(rootCmd *cobra.Command, e *env) {
	rootCmd.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "Path to annotator.yaml")
	rootCmd.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(fmt.Sprintf("error binding flags: %v", err))
	}
}
