package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Manage relay switches (admin key)",
	Long: `Relay switches are Redis-backed flags checked before every swap.

Known switches (unset reads as false):
  relay.paused                      reject all swaps
  swaps.eth_for_tokens.disabled     per-shape kill switches
  swaps.tokens_for_tokens.disabled
  swaps.tokens_for_eth.disabled
  wallets.deposit_faucet            enable the development faucet`,
}

var flagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List switches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		items, err := c.Flags(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(items)
		}
		fmt.Println()
		for _, f := range items {
			state := color.RedString("off")
			if f.Value {
				state = color.GreenString("on ")
			}
			fmt.Printf("  %s  %-30s %s\n", state, f.Key, f.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
		return nil
	},
}

var flagsSetCmd = &cobra.Command{
	Use:   "set <key> <true|false>",
	Short: "Create or update a switch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[1], err)
		}
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		f, err := c.SetFlag(cmd.Context(), args[0], value)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(f)
		}
		printSuccess(fmt.Sprintf("%s = %t", f.Key, f.Value))
		return nil
	},
}

var flagsDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a switch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := c.DeleteFlag(cmd.Context(), args[0]); err != nil {
			return err
		}
		printSuccess("Deleted " + args[0])
		return nil
	},
}

var operatorCmd = &cobra.Command{
	Use:   "operator <address>",
	Short: "Rotate the swap operator (admin key)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := c.SetOperator(cmd.Context(), args[0]); err != nil {
			return err
		}
		printSuccess("Operator set to " + args[0])
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show relay identities",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		h, err := c.Health(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(h)
		}
		fmt.Println()
		field("Executor", h.Executor)
		field("Operator", h.Operator)
		field("Router", h.Router)
		field("Pools", strconv.Itoa(h.Pools))
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flagsCmd, operatorCmd, healthCmd)
	flagsCmd.AddCommand(flagsListCmd, flagsSetCmd, flagsDeleteCmd)
}
