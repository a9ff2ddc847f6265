package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conversa/cli/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and modify configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a configuration value using dot notation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openConfigViper()
		if err != nil {
			return err
		}

		if !v.IsSet(args[0]) {
			return fmt.Errorf("unknown configuration key: %s", args[0])
		}
		fmt.Println(v.Get(args[0]))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value using dot notation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openConfigViper()
		if err != nil {
			return err
		}

		v.Set(args[0], args[1])
		if err := v.WriteConfig(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Set %s = %s\n", args[0], args[1])
		return nil
	},
}

// openConfigViper loads the config file into a viper instance so keys
// can be addressed with dot notation. The file is created from
// defaults when missing.
func openConfigViper() (*viper.Viper, error) {
	override, _ := rootCmd.PersistentFlags().GetString("config")
	path := config.GetConfigPath(override)

	if _, statErr := config.Load(path); statErr != nil {
		return nil, statErr
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		// seed the file from defaults so set/get have a target
		if saveErr := config.DefaultConfig().Save(path); saveErr != nil {
			return nil, saveErr
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
