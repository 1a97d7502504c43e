package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/app"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/receipt"
	"github.com/joseph-ayodele/receipt-parser/internal/receipts"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

// env is what every subcommand runs against, set up once flags are parsed.
type env struct {
	cfg     *common.Config
	logger  *slog.Logger
	db      *repository.DB
	owners  repository.OwnerRepository
	jobs    repository.ParseJobRepository
	service *receipts.Service
	ownerID string
}

func main() {
	_ = godotenv.Load()
	cfg := common.LoadConfig()
	e := &env{cfg: cfg}

	rootFlags := ff.NewFlagSet("receipts")
	owner := rootFlags.StringLong("owner", "Local Batch", "owner name")
	root := &ff.Command{
		Name:  "receipts",
		Usage: "receipts [FLAGS] <SUBCOMMAND> ...",
		Flags: rootFlags,
	}

	addFlags := ff.NewFlagSet("add").SetParent(rootFlags)
	var (
		vendor   = addFlags.StringLong("vendor", "", "vendor name")
		date     = addFlags.StringLong("date", "", "transaction date")
		amount   = addFlags.StringLong("amount", "", "amount, e.g. 12.50 or €1.234,56")
		currency = addFlags.StringLong("currency", "", "ISO 4217 code; defaults to the configured currency")
		category = addFlags.StringLong("category", "", "category name")
		pStart   = addFlags.StringLong("period-start", "", "billing period start")
		pEnd     = addFlags.StringLong("period-end", "", "billing period end")
	)
	root.Subcommands = append(root.Subcommands, &ff.Command{
		Name:      "add",
		Usage:     "receipts add --vendor NAME --date DATE --amount AMOUNT [FLAGS]",
		ShortHelp: "store a receipt entered by hand",
		Flags:     addFlags,
		Exec: func(ctx context.Context, _ []string) error {
			rec, err := e.service.AddReceipt(ctx, receipts.AddReceiptRequest{
				OwnerID: e.ownerID,
				Entry: receipt.ManualEntry{
					VendorName:         *vendor,
					TransactionDate:    *date,
					Amount:             *amount,
					Currency:           *currency,
					CategoryName:       *category,
					BillingPeriodStart: *pStart,
					BillingPeriodEnd:   *pEnd,
				},
			})
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	})

	listFlags := ff.NewFlagSet("list").SetParent(rootFlags)
	var (
		from = listFlags.StringLong("from", "", "from date YYYY-MM-DD")
		to   = listFlags.StringLong("to", "", "to date YYYY-MM-DD")
	)
	root.Subcommands = append(root.Subcommands, &ff.Command{
		Name:      "list",
		Usage:     "receipts list [--from DATE] [--to DATE]",
		ShortHelp: "list stored receipts",
		Flags:     listFlags,
		Exec: func(ctx context.Context, _ []string) error {
			recs, err := e.service.ListReceipts(ctx, receipts.ListReceiptsRequest{OwnerID: e.ownerID, FromDate: *from, ToDate: *to})
			if err != nil {
				return err
			}
			return printJSON(recs)
		},
	})

	root.Subcommands = append(root.Subcommands, &ff.Command{
		Name:      "search",
		Usage:     "receipts search QUERY",
		ShortHelp: "fuzzy-search receipts by vendor",
		Flags:     ff.NewFlagSet("search").SetParent(rootFlags),
		Exec: func(ctx context.Context, args []string) error {
			recs, err := e.service.SearchByVendor(ctx, e.ownerID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(recs)
		},
	})

	jobFlags := ff.NewFlagSet("jobs").SetParent(rootFlags)
	jobStatus := jobFlags.StringLong("status", "", "QUEUED, RUNNING, PARSED or FAILED; empty lists all")
	root.Subcommands = append(root.Subcommands, &ff.Command{
		Name:      "jobs",
		Usage:     "receipts jobs [--status STATUS]",
		ShortHelp: "list parse attempts",
		Flags:     jobFlags,
		Exec: func(ctx context.Context, _ []string) error {
			jobs, err := e.jobs.ListByOwner(ctx, uuid.MustParse(e.ownerID), constants.JobStatus(strings.ToUpper(*jobStatus)))
			if err != nil {
				return err
			}
			return printJSON(jobs)
		},
	})

	if err := root.Parse(os.Args[1:], ff.WithEnvVarPrefix("RECEIPTS")); err != nil {
		sel := root.GetSelected()
		if sel == nil {
			sel = root
		}
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(sel))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if root.GetSelected() == root {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root))
		os.Exit(2)
	}

	e.logger = app.NewLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.open(ctx, *owner); err != nil {
		e.logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer e.db.Close()

	if err := root.Run(ctx); err != nil {
		if s, ok := status.FromError(err); ok {
			fmt.Fprintf(os.Stderr, "%s: %s\n", s.Code(), s.Message())
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		e.db.Close()
		os.Exit(1)
	}
}

func (e *env) open(ctx context.Context, ownerName string) error {
	db, err := app.OpenDB(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	e.db = db
	e.owners = repository.NewOwnerRepository(db, e.logger)
	e.jobs = repository.NewParseJobRepository(db, e.logger)

	o, err := e.owners.GetOrCreateByName(ctx, ownerName, e.cfg.Extract.DefaultCurrency)
	if err != nil {
		db.Close()
		return err
	}
	e.ownerID = o.ID.String()

	v, err := receipt.NewValidator(o.DefaultCurrency, e.logger)
	if err != nil {
		db.Close()
		return err
	}
	e.service = receipts.NewService(repository.NewReceiptRepository(db, e.logger), e.owners, v, e.logger)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
