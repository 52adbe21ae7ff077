package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aman-zulfiqar/w2w-relay/internal/client"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "Operator CLI for the wallet-to-wallet swap relay",
	Long: `relayctl talks to a running relayd over its HTTP API.

Settings come from flags, RELAYCTL_* environment variables or a
.relayctl.yaml file in $HOME or the current directory.

Examples:
  relayctl wallet deploy 0xA11c...
  relayctl swap intent --user 0xA11c... --from ETH --to DAI --amount 1000000000000000000
  relayctl fees list
  relayctl collect eth 5000000000000000 --to 0xB0b...`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $HOME/.relayctl.yaml)")
	pf.String("url", "", "relay base URL")
	pf.String("api-key", "", "relay API key (operator or admin)")
	pf.Duration("timeout", 0, "request timeout")
	pf.BoolP("verbose", "v", false, "Enable verbose output")
	pf.BoolP("json", "j", false, "Output in JSON format")

	_ = viper.BindPFlag("url", pf.Lookup("url"))
	_ = viper.BindPFlag("api_key", pf.Lookup("api-key"))
	_ = viper.BindPFlag("timeout", pf.Lookup("timeout"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".relayctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME")
		viper.AddConfigPath(".")
	}

	viper.SetDefault("url", "http://localhost:8090")
	viper.SetDefault("timeout", 30*time.Second)
	viper.SetDefault("retries", 3)
	viper.SetDefault("backoff", time.Second)

	viper.SetEnvPrefix("RELAYCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Config file is optional
	_ = viper.ReadInConfig()
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	key := viper.GetString("api_key")
	if key == "" {
		return nil, errors.New("API key not found. Set RELAYCTL_API_KEY, pass --api-key or add api_key to .relayctl.yaml")
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.DebugLevel)
	}

	return client.NewClient(client.ClientConfig{
		BaseURL:      viper.GetString("url"),
		APIKey:       key,
		Timeout:      viper.GetDuration("timeout"),
		MaxRetries:   viper.GetInt("retries"),
		RetryBackoff: viper.GetDuration("backoff"),
		Logger:       logger,
	}), nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printError(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		color.Red("\nError (%d): %s\n", apiErr.Status, apiErr.Message)
		if apiErr.Details != nil {
			fmt.Fprintf(os.Stderr, "  details: %v\n", apiErr.Details)
		}
		return
	}
	color.Red("\nError: %v\n", err)
}

func printSuccess(message string) {
	color.Green("\n%s\n", message)
}

func field(name, value string) {
	fmt.Printf("  %-16s %s\n", color.CyanString(name), value)
}
