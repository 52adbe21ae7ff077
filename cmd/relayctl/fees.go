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

var collectTo string

var feesCmd = &cobra.Command{
	Use:   "fees",
	Short: "Inspect and sweep accrued relay fees",
}

var feesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List assets with uncollected fees",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		items, err := c.PendingFees(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(items)
		}
		if len(items) == 0 {
			fmt.Println("\nNo fees pending.")
			return nil
		}
		fmt.Println()
		for _, f := range items {
			fmt.Printf("  %s  %s\n", color.CyanString(f.Asset), f.Accrued)
		}
		fmt.Println()
		return nil
	},
}

var feesShowCmd = &cobra.Command{
	Use:   "show <asset>",
	Short: "Show the fee position of an asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		fb, err := c.Fees(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(fb)
		}
		fmt.Println()
		field("Asset", fb.Asset.Hex())
		field("Accrued", fb.Accrued)
		field("Extra", fb.Extra)
		field("At fee sink", fb.Collected)
		fmt.Println()
		return nil
	},
}

var feesSweepCmd = &cobra.Command{
	Use:   "sweep [asset...]",
	Short: "Send accrued fees to the fee sink (admin key)",
	Long:  "Sweeps the named assets, or every asset with accrued fees when none is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		res, err := c.SweepFees(cmd.Context(), args)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(res)
		}
		if len(res.Swept) == 0 {
			fmt.Println("\nNothing to sweep.")
			return nil
		}
		printSuccess(fmt.Sprintf("Swept %d asset(s) to %s", len(res.Swept), res.Recipient.Hex()))
		displaySwept(res)
		return nil
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Withdraw executor balance above accrued fees (admin key)",
}

var collectTokensCmd = &cobra.Command{
	Use:   "tokens <token> <amount>",
	Short: "Withdraw extra token balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		res, err := c.CollectTokens(cmd.Context(), server.CollectRequest{Token: args[0], Amount: args[1], To: collectTo})
		if err != nil {
			return err
		}
		return showCollect(cmd, res)
	},
}

var collectETHCmd = &cobra.Command{
	Use:   "eth <amount>",
	Short: "Withdraw extra native balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		res, err := c.CollectETH(cmd.Context(), server.CollectRequest{Amount: args[0], To: collectTo})
		if err != nil {
			return err
		}
		return showCollect(cmd, res)
	},
}

func init() {
	rootCmd.AddCommand(feesCmd, collectCmd)
	feesCmd.AddCommand(feesListCmd, feesShowCmd, feesSweepCmd)
	collectCmd.AddCommand(collectTokensCmd, collectETHCmd)

	collectCmd.PersistentFlags().StringVar(&collectTo, "to", "", "recipient address")
	_ = collectCmd.MarkPersistentFlagRequired("to")
}

func showCollect(cmd *cobra.Command, res *swapengine.CollectResult) error {
	if jsonOutput(cmd) {
		return printJSON(res)
	}
	printSuccess(fmt.Sprintf("Collected %s of %s", res.Amount, res.Asset.Hex()))
	field("Recipient", res.Recipient.Hex())
	field("Gas used", fmt.Sprintf("%d", res.GasUsed))
	fmt.Println()
	return nil
}

func displaySwept(res *swapengine.CollectResult) {
	assets := make([]common.Address, 0, len(res.Swept))
	for a := range res.Swept {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Hex() < assets[j].Hex() })
	for _, a := range assets {
		fmt.Printf("  %s  %s\n", color.CyanString(a.Hex()), res.Swept[a])
	}
	fmt.Println()
}
