// Package cli implements stockctl, the staff and cron entry point to the stock subsystem.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"marketstock/internal/app"
	"marketstock/internal/auth"
	"marketstock/internal/config"
	"marketstock/internal/domain/model"
	"marketstock/internal/logger"
	"marketstock/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const serviceName = "marketstock-cli"

// Builder opens the stores behind the commands; tests inject a shared memory app.
type Builder func(ctx context.Context, cfg config.Config, log *zap.Logger) (*app.App, error)

func defaultBuilder(ctx context.Context, cfg config.Config, log *zap.Logger) (*app.App, error) {
	return app.Build(ctx, cfg, serviceName, log)
}

// skipApp marks commands that never touch the store.
const skipApp = "skip-app"

type runtime struct {
	v       *viper.Viper
	build   Builder
	cfg     config.Config
	log     *zap.Logger
	app     *app.App
	stopBus context.CancelFunc
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand(defaultBuilder).ExecuteContext(ctx)
}

func NewRootCommand(build Builder) *cobra.Command {
	rt := &runtime{v: viper.New(), build: build}

	root := &cobra.Command{
		Use:          "stockctl",
		Short:        "Stock reservation and inventory administration",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("store", "", "store backend: postgres|memory (default from STORE)")
	pf.String("log-level", "", "log level (default from LOG_LEVEL)")
	pf.String("config", "", "optional config file read by viper")
	pf.Int64("actor", 0, "staff user id recorded on ledger and audit entries")
	for _, name := range []string{"store", "log-level", "config", "actor"} {
		_ = rt.v.BindPFlag(name, pf.Lookup(name))
	}
	rt.v.SetEnvPrefix("STOCKCTL")
	rt.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	rt.v.AutomaticEnv()

	root.AddCommand(
		rt.migrateCmd(),
		rt.sweepCmd(),
		rt.createProductCmd(),
		rt.restockCmd(),
		rt.reduceCmd(),
		rt.adjustCmd(),
		rt.soldOutCmd(),
		rt.historyCmd(),
		rt.summaryCmd(),
		rt.lowStockCmd(),
		rt.tokenCmd(),
	)
	// cobra skips post-run hooks when RunE fails, so teardown wraps each command
	for _, sub := range root.Commands() {
		run := sub.RunE
		sub.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			if cerr := rt.teardown(); err == nil {
				err = cerr
			}
			return err
		}
	}
	return root
}

func (rt *runtime) setup(cmd *cobra.Command) error {
	// help and completion
	if cmd.RunE == nil {
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if f := rt.v.GetString("config"); f != "" {
		rt.v.SetConfigFile(f)
		if err := rt.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	if s := rt.v.GetString("store"); s != "" {
		cfg.Store = s
	}
	if l := rt.v.GetString("log-level"); l != "" {
		cfg.LogLevel = l
	}
	rt.cfg = cfg

	rt.log, err = logger.New(cfg.LogLevel, cfg.GoEnv)
	if err != nil {
		return err
	}
	if cmd.Annotations[skipApp] != "" {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	rt.app, err = rt.build(ctx, cfg, rt.log)
	if err != nil {
		return err
	}
	if rt.app.Producer != nil {
		busCtx, cancel := context.WithCancel(context.Background())
		rt.stopBus = cancel
		go func() { _ = rt.app.Producer.Run(busCtx) }()
	}
	return nil
}

func (rt *runtime) teardown() error {
	if rt.app == nil {
		return nil
	}
	if rt.stopBus != nil {
		// flush buffered events before exit
		rt.stopBus()
		<-rt.app.Producer.Done()
		rt.stopBus = nil
	}
	err := rt.app.Close()
	rt.app = nil
	_ = rt.log.Sync()
	return err
}

func (rt *runtime) actor() *int64 {
	if id := rt.v.GetInt64("actor"); id > 0 {
		return &id
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func productIDArg(args []string) (int64, error) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", args[0])
	}
	return id, nil
}

func (rt *runtime) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.app.Migrate()
		},
	}
}

func (rt *runtime) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue reservations (run from cron)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rt.app.Reservations.ExpireStale(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]int64{"expired": n})
		},
	}
}

func (rt *runtime) createProductCmd() *cobra.Command {
	var (
		name, price, status, approval string
		seller, stock                 int64
	)
	cmd := &cobra.Command{
		Use:   "create-product",
		Short: "Create a product with its initial ledger entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid price %q", price)
			}
			out, err := rt.app.Mutator.CreateProduct(cmd.Context(), usecase.CreateProductInput{
				SellerID:       seller,
				Name:           name,
				Price:          p,
				InitialStock:   stock,
				Status:         model.ProductStatus(status),
				ApprovalStatus: model.ApprovalStatus(approval),
				ActorID:        rt.actor(),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().StringVar(&price, "price", "0", "unit price")
	cmd.Flags().Int64Var(&seller, "seller", 0, "seller id")
	cmd.Flags().Int64Var(&stock, "stock", 0, "initial stock")
	cmd.Flags().StringVar(&status, "status", "", "draft|active|inactive|sold")
	cmd.Flags().StringVar(&approval, "approval", "", "pending|approved|rejected")
	return cmd
}

func (rt *runtime) restockCmd() *cobra.Command {
	var (
		qty    int64
		reason string
	)
	cmd := &cobra.Command{
		Use:   "restock <product-id>",
		Short: "Add units to stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := productIDArg(args)
			if err != nil {
				return err
			}
			out, err := rt.app.Mutator.Increase(cmd.Context(), usecase.IncreaseInput{
				ProductID: id, Quantity: qty, Reason: reason, ActorID: rt.actor(),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().Int64Var(&qty, "qty", 0, "units to add")
	cmd.Flags().StringVar(&reason, "reason", "", "ledger reason")
	return cmd
}

func (rt *runtime) reduceCmd() *cobra.Command {
	var (
		qty     int64
		reason  string
		damaged bool
	)
	cmd := &cobra.Command{
		Use:   "reduce <product-id>",
		Short: "Remove units from stock (a sale, or a write-off with --damaged)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := productIDArg(args)
			if err != nil {
				return err
			}
			in := usecase.ReduceInput{ProductID: id, Quantity: qty, Reason: reason, ActorID: rt.actor()}
			var out usecase.StockChange
			if damaged {
				out, err = rt.app.Mutator.WriteOff(cmd.Context(), in)
			} else {
				out, err = rt.app.Mutator.Reduce(cmd.Context(), in)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().Int64Var(&qty, "qty", 0, "units to remove")
	cmd.Flags().StringVar(&reason, "reason", "", "ledger reason")
	cmd.Flags().BoolVar(&damaged, "damaged", false, "record as damaged instead of sold")
	return cmd
}

func (rt *runtime) adjustCmd() *cobra.Command {
	var (
		stock  int64
		reason string
	)
	cmd := &cobra.Command{
		Use:   "adjust <product-id>",
		Short: "Set stock to an absolute count after a stock take",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := productIDArg(args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("stock") {
				return errors.New("--stock is required")
			}
			out, err := rt.app.Mutator.Adjust(cmd.Context(), usecase.AdjustInput{
				ProductID: id, NewStock: stock, Reason: reason, ActorID: rt.actor(),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().Int64Var(&stock, "stock", 0, "new stock count")
	cmd.Flags().StringVar(&reason, "reason", "", "ledger reason")
	return cmd
}

func (rt *runtime) soldOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sold-out <product-id>",
		Short: "Zero the stock and mark the product sold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := productIDArg(args)
			if err != nil {
				return err
			}
			var actor int64
			if a := rt.actor(); a != nil {
				actor = *a
			}
			out, err := rt.app.Mutator.MarkSoldOut(cmd.Context(), id, actor)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func (rt *runtime) historyCmd() *cobra.Command {
	var (
		since string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history <product-id>",
		Short: "Print ledger entries newest first, one JSON object per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := productIDArg(args)
			if err != nil {
				return err
			}
			var sincePtr *time.Time
			if since != "" {
				tm, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("invalid --since %q: %w", since, err)
				}
				sincePtr = &tm
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			n := 0
			for h, err := range rt.app.Ledger.HistoryFor(cmd.Context(), id, sincePtr) {
				if err != nil {
					return err
				}
				if err := enc.Encode(h); err != nil {
					return err
				}
				n++
				if limit > 0 && n >= limit {
					break
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only entries at or after this RFC3339 time")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many entries (0 = all)")
	return cmd
}

func (rt *runtime) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <product-id>",
		Short: "Aggregate the ledger and check it reconciles with current stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := productIDArg(args)
			if err != nil {
				return err
			}
			out, err := rt.app.Ledger.SummaryFor(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, out); err != nil {
				return err
			}
			if !out.Reconciled {
				return fmt.Errorf("ledger of product %d does not reconcile", id)
			}
			return nil
		},
	}
}

func (rt *runtime) lowStockCmd() *cobra.Command {
	var (
		threshold int64
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "low-stock",
		Short: "List sellable products at or under the low-stock threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := rt.app.Catalog.LowStock(cmd.Context(), threshold, limit)
			if err != nil {
				return err
			}
			rt.log.Info("low stock report", zap.Int("products", len(out)))
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().Int64Var(&threshold, "threshold", 0, "stock threshold (0 = LOW_STOCK_THRESHOLD)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max products (0 = 100)")
	return cmd
}

func (rt *runtime) tokenCmd() *cobra.Command {
	var (
		userID int64
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:         "token",
		Short:       "Issue a bearer token for the API (local testing and service accounts)",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required")
			}
			tok, exp, err := auth.NewIssuer(rt.cfg.JWTSecret, ttl).Issue(userID, strings.ToUpper(role), time.Now())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"token": tok, "expires_at": exp})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id (sub claim)")
	cmd.Flags().StringVar(&role, "role", auth.RoleUser, "USER or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "token lifetime")
	return cmd
}
