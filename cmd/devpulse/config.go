package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect devpulse configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective configuration",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	shown := *cfg
	if shown.Cache.RedisPassword != "" {
		shown.Cache.RedisPassword = "********"
	}
	shown.Database.PostgresDSN = redactDSN(shown.Database.PostgresDSN)
	shown.Storage.PostgresDSN = redactDSN(shown.Storage.PostgresDSN)

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(shown)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	result := cfg.Validate()
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if result.HasErrors() {
		return fmt.Errorf("%s", result.Error())
	}
	fmt.Println("Configuration is valid")
	return nil
}

// redactDSN hides the password of a URL-style DSN
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
