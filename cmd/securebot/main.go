package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/securebot-ai/securebot/pkg/config"
	"github.com/securebot-ai/securebot/pkg/logger"
)

func init() {
	viper.SetEnvPrefix("SECUREBOT")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.securebot")
	viper.AddConfigPath(".")

	// Config file is optional.
	_ = viper.ReadInConfig()

	config.SetDefaults()
}

var rootCmd = &cobra.Command{
	Use:   "securebot",
	Short: "Personal assistant query router with a self-extending skill library",
	Long: `Securebot routes natural-language requests across a local model, a cloud
model, and a library of generated skills. Action-intent queries match or
generate executable skills; knowledge queries go through retrieval-backed
local generation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if level := viper.GetString("log_level"); level != "" {
			if err := logger.SetLogLevel(level); err != nil {
				return err
			}
		}
		if format := viper.GetString("log_format"); format != "" {
			logger.SetLogFormat(format)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (json or text)")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
