package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/warp/finance-engine/gateway"
	"github.com/warp/finance-engine/ledger"
	"github.com/warp/finance-engine/money"
	"github.com/warp/finance-engine/store/sqlite"
	"github.com/warp/finance-engine/tracker"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print accounts, instruments and totals",
	Long: `Print the ledger's accounts, open instruments and aggregate totals.
By default the snapshot persisted in the local database is read. With
--remote the ledger is fetched from a running backend instead.`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().String("remote", "", "Backend base URL, e.g. http://localhost:8080")
	summaryCmd.Flags().String("token", "", "Bearer token for --remote")
}

func runSummary(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	remote, _ := cmd.Flags().GetString("remote")
	token, _ := cmd.Flags().GetString("token")

	book := ledger.NewBook(ledger.WithCurrency(strings.ToUpper(cfg.Currency)))
	if remote != "" {
		err = loadRemote(cmd.Context(), book, remote, token)
	} else {
		err = loadLocal(cmd.Context(), book, cfg.Server.DB)
	}
	if err != nil {
		return err
	}
	return printSummary(cmd.OutOrStdout(), book)
}

func loadRemote(ctx context.Context, book *ledger.Book, baseURL, token string) error {
	client := gateway.NewClient(baseURL, gateway.WithToken(gateway.StaticToken(token)))
	res := tracker.New(book, client, nil).Load(ctx)
	if !res.Success {
		return fmt.Errorf("fetch ledger: %s", res.Error)
	}
	return nil
}

func loadLocal(ctx context.Context, book *ledger.Book, dbPath string) error {
	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	ok, err := ledger.ResumeSnapshot(ctx, store, book)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no ledger persisted in %s", dbPath)
	}
	return nil
}

func printSummary(out io.Writer, book *ledger.Book) error {
	cur := book.Currency()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(w, "ACCOUNT\tTYPE\tBALANCE\t")
	for _, a := range book.Accounts() {
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", a.Name, a.Type, money.Format(a.Balance, cur))
	}
	fmt.Fprintln(w, "\t\t\t")

	fmt.Fprintln(w, "INSTRUMENT\tSTATUS\tPRINCIPAL\t")
	for _, i := range book.Instruments() {
		name := string(i.Kind)
		if i.Beneficiary != "" {
			name += " / " + i.Beneficiary
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", name, i.Status, money.Format(i.Principal, cur))
	}
	fmt.Fprintln(w, "\t\t\t")

	s := book.Summary()
	fmt.Fprintf(w, "Capital\t\t%s\t\n", money.Format(s.Capital, cur))
	fmt.Fprintf(w, "Invested (active)\t\t%s\t\n", money.Format(s.ActiveInvested, cur))
	fmt.Fprintf(w, "Expected profit\t\t%s\t\n", money.Format(s.Profit, cur))
	return w.Flush()
}
