package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/w2w-relay/internal/server"
	"github.com/aman-zulfiqar/w2w-relay/internal/swapengine"
)

var (
	swapUser       string
	swapFrom       string
	swapTo         string
	swapAmount     string
	swapSlippage   uint16
	swapFee        uint16
	swapPayToOwner bool
	swapGasBudget  uint64
	rawWallet      string
	rawMinReturn   string
	rawSpender     string
	rawTarget      string
	rawPayload     string
	recentLimit    int
	quoteSlippage  uint16
)

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Execute and inspect swaps",
}

var swapIntentCmd = &cobra.Command{
	Use:   "intent",
	Short: "Swap through the relay's bundled router",
	Long: `Builds the router call on the relay side and executes it for the user's
proxy account.

Examples:
  relayctl swap intent --user 0xA11c... --from ETH --to DAI --amount 1000000000000000000 --fee 25
  relayctl swap intent --user 0xA11c... --from DAI --to ETH --amount 500e18 --pay-to-owner`,
	RunE: runSwapIntent,
}

var swapRawCmd = &cobra.Command{
	Use:   "raw <eth-for-tokens|tokens|tokens-for-eth>",
	Short: "Swap with caller-supplied counterparty calldata",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwapRaw,
}

var swapQuoteCmd = &cobra.Command{
	Use:   "quote <amount> <from> <to>",
	Short: "Price a swap without executing it",
	Args:  cobra.ExactArgs(3),
	RunE:  runQuote,
}

var swapRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recent swap outcomes",
	RunE:  runRecent,
}

func init() {
	rootCmd.AddCommand(swapCmd)
	swapCmd.AddCommand(swapIntentCmd, swapRawCmd, swapQuoteCmd, swapRecentCmd)

	f := swapIntentCmd.Flags()
	f.StringVar(&swapUser, "user", "", "wallet owner address")
	f.StringVar(&swapFrom, "from", "", "source asset symbol or address")
	f.StringVar(&swapTo, "to", "", "destination asset symbol or address")
	f.StringVar(&swapAmount, "amount", "", "source amount in base units")
	f.Uint16Var(&swapSlippage, "slippage", 0, "slippage tolerance in basis points (relay default when 0)")
	f.Uint16Var(&swapFee, "fee", 0, "relay fee in basis points")
	f.BoolVar(&swapPayToOwner, "pay-to-owner", false, "deliver output to the wallet owner")
	f.Uint64Var(&swapGasBudget, "gas-budget", 0, "gas budget (relay default when 0)")
	for _, name := range []string{"user", "from", "to", "amount"} {
		_ = swapIntentCmd.MarkFlagRequired(name)
	}

	r := swapRawCmd.Flags()
	r.StringVar(&rawWallet, "wallet", "", "proxy account address")
	r.StringVar(&swapFrom, "from", "", "source asset")
	r.StringVar(&swapTo, "to", "", "destination asset")
	r.StringVar(&swapAmount, "amount", "", "source amount in base units")
	r.StringVar(&rawMinReturn, "min-return", "0", "minimum gross output")
	r.Uint16Var(&swapFee, "fee", 0, "relay fee in basis points")
	r.BoolVar(&swapPayToOwner, "pay-to-owner", false, "deliver output to the wallet owner")
	r.Uint64Var(&swapGasBudget, "gas-budget", 0, "gas budget (relay default when 0)")
	r.StringVar(&rawSpender, "spender", "", "approval spender (defaults to target)")
	r.StringVar(&rawTarget, "target", "", "counterparty contract address")
	r.StringVar(&rawPayload, "payload", "", "0x-hex calldata for target")
	for _, name := range []string{"wallet", "from", "to", "amount", "target"} {
		_ = swapRawCmd.MarkFlagRequired(name)
	}

	swapQuoteCmd.Flags().Uint16Var(&quoteSlippage, "slippage", 0, "slippage tolerance in basis points")
	swapRecentCmd.Flags().IntVar(&recentLimit, "limit", 20, "number of outcomes")
}

func runSwapIntent(cmd *cobra.Command, _ []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}

	body := server.SwapIntentBody{
		User:       swapUser,
		FromAsset:  swapFrom,
		ToAsset:    swapTo,
		Amount:     swapAmount,
		FeeBps:     swapFee,
		PayToOwner: swapPayToOwner,
		GasBudget:  swapGasBudget,
	}
	if cmd.Flags().Changed("slippage") {
		body.SlippageBps = &swapSlippage
	}

	var resp *server.SwapResponse
	err = withSpinner(cmd, " Executing swap...", func(ctx context.Context) error {
		var err error
		resp, err = c.SwapIntent(ctx, body)
		return err
	})
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(resp)
	}
	if resp.Quote != nil {
		fmt.Printf("\nRoute: %s\n", strings.Join(resp.Quote.Path, " -> "))
	}
	displayOutcome(resp.Outcome)
	return nil
}

func runSwapRaw(cmd *cobra.Command, args []string) error {
	shape, err := parseShape(args[0])
	if err != nil {
		return err
	}
	c, err := newClient(cmd)
	if err != nil {
		return err
	}

	body := server.SwapRequestBody{
		Wallet:     rawWallet,
		FromAsset:  swapFrom,
		Amount:     swapAmount,
		ToAsset:    swapTo,
		MinReturn:  rawMinReturn,
		FeeBps:     swapFee,
		PayToOwner: swapPayToOwner,
		GasBudget:  swapGasBudget,
		Spender:    rawSpender,
		Target:     rawTarget,
		Payload:    rawPayload,
	}

	var resp *server.SwapResponse
	err = withSpinner(cmd, " Executing swap...", func(ctx context.Context) error {
		var err error
		resp, err = c.Swap(ctx, shape, body)
		return err
	})
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(resp)
	}
	displayOutcome(resp.Outcome)
	return nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	var slippage *uint16
	if cmd.Flags().Changed("slippage") {
		slippage = &quoteSlippage
	}

	q, err := c.Quote(cmd.Context(), args[1], args[2], args[0], slippage)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(q)
	}

	fmt.Println()
	field("Shape", string(q.Shape))
	field("Route", strings.Join(q.Path, " -> "))
	field("Amount in", q.AmountIn.String())
	field("Amount out", q.AmountOut.String())
	field("Min out", fmt.Sprintf("%s (%d bps)", q.MinAmountOut, q.SlippageBps))
	fmt.Println()
	return nil
}

func runRecent(cmd *cobra.Command, _ []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	items, err := c.RecentOutcomes(cmd.Context(), recentLimit)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("\nNo swaps yet.")
		return nil
	}

	fmt.Println()
	for _, o := range items {
		status := color.GreenString("ok  ")
		detail := fmt.Sprintf("%s -> %s", o.Amount, o.NetDelivered)
		if !o.Success {
			status = color.RedString("fail")
			detail = o.Reason
		}
		fmt.Printf("%s  %s  %s  %-17s %s\n",
			o.Timestamp.Format(time.DateTime), status, shortID(o.ExecutionID), o.Shape, detail)
	}
	fmt.Println()
	return nil
}

func displayOutcome(o *swapengine.SwapOutcome) {
	if o == nil {
		return
	}
	fmt.Println()
	if o.Success {
		color.Green("Swap executed")
	} else {
		color.Red("Swap failed: %s", o.Reason)
	}
	field("Execution", o.ExecutionID)
	field("Wallet", o.Wallet.Hex())
	if o.Success {
		field("Source spent", o.SourceSpent.String())
		field("Gross output", o.GrossOutput.String())
		field("Fee", fmt.Sprintf("%s (%d bps)", o.Fee, o.FeeRate))
		field("Delivered", o.NetDelivered.String())
		field("Recipient", o.Recipient.Hex())
	} else if len(o.ErrorData) > 0 {
		field("Error data", o.ErrorData.String())
	}
	field("Gas used", fmt.Sprintf("%d", o.GasUsed))
	field("Gas reimbursed", o.GasReimbursed.String())
	fmt.Println()
}

func parseShape(s string) (swapengine.Shape, error) {
	switch s {
	case "eth-for-tokens":
		return swapengine.ShapeETHForTokens, nil
	case "tokens":
		return swapengine.ShapeTokens, nil
	case "tokens-for-eth":
		return swapengine.ShapeTokensForETH, nil
	}
	return "", fmt.Errorf("unknown swap shape %q", s)
}

func withSpinner(cmd *cobra.Command, suffix string, fn func(ctx context.Context) error) error {
	if jsonOutput(cmd) {
		return fn(cmd.Context())
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = suffix
	s.Start()
	defer s.Stop()
	return fn(cmd.Context())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
