package main

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/w2w-relay/internal/server"
	"github.com/aman-zulfiqar/w2w-relay/internal/swapengine"
)

var walletReferrer string

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage user proxy accounts",
}

var walletDeployCmd = &cobra.Command{
	Use:   "deploy <user>",
	Short: "Deploy a proxy account controlled by the relay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		info, err := c.DeployWallet(cmd.Context(), server.DeployWalletRequest{User: args[0], Referrer: walletReferrer})
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(info)
		}
		printSuccess("Wallet deployed")
		displayWallet(info)
		return nil
	},
}

var walletInfoCmd = &cobra.Command{
	Use:   "info <user>",
	Short: "Show a user's proxy account and balances",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		info, err := c.WalletInfo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(info)
		}
		displayWallet(info)
		return nil
	},
}

var walletDepositCmd = &cobra.Command{
	Use:   "deposit <user> <asset> <amount>",
	Short: "Credit a wallet from the development faucet",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		info, err := c.Deposit(cmd.Context(), args[0], server.DepositRequest{Asset: args[1], Amount: args[2]})
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(info)
		}
		printSuccess(fmt.Sprintf("Deposited %s %s", args[2], args[1]))
		displayWallet(info)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletDeployCmd, walletInfoCmd, walletDepositCmd)

	walletDeployCmd.Flags().StringVar(&walletReferrer, "referrer", "", "referrer address")
}

func displayWallet(info *swapengine.WalletInfo) {
	fmt.Println()
	field("User", info.User.Hex())
	field("Wallet", info.Address.Hex())
	field("Owner", info.Owner.Hex())
	field("Controller", info.Controller.Hex())
	if info.Referrer != (common.Address{}) {
		field("Referrer", info.Referrer.Hex())
	}
	field("Gas reserve", info.GasReserve)

	symbols := make([]string, 0, len(info.Balances))
	for s := range info.Balances {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	fmt.Println(color.New(color.Bold).Sprint("\n  Balances"))
	for _, s := range symbols {
		fmt.Printf("    %-8s %s\n", s, info.Balances[s])
	}
	fmt.Println()
}
