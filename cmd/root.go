package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conversa/cli/config"
	"github.com/conversa/cli/internal/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "conversa",
	Short: "Chat with an assistant backend from the terminal",
	Long: `conversa is a command-line client for a streaming assistant backend.
It streams responses token by token, shows tool activity as it happens,
and keeps a local mirror of your recent sessions.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Use 'conversa chat' to start chatting or --help to see available commands.")
	},
}

// Execute runs the root command.
func Execute() {
	defer logger.Close()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", fmt.Sprintf("config file (default is %s)", config.DefaultConfigPath))
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	logger.Init(verbose)

	override, _ := rootCmd.PersistentFlags().GetString("config")
	configPath := config.GetConfigPath(override)

	loaded, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config from %s: %v\n", configPath, err)
		os.Exit(1)
	}
	cfg = loaded
}
