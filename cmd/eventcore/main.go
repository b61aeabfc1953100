package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/akeemphilbert/eventcore/internal/catalog"
	"github.com/akeemphilbert/eventcore/pkg/eventlog/domain"
	"github.com/akeemphilbert/eventcore/pkg/eventlog/infrastructure"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "eventcore",
		Short: "Event-sourced catalog demo CLI",
		Long: `A demonstration CLI exercising the event-sourcing core: durable
append-only storage, cache-accelerated aggregation, and broker-mediated
subscription and replay, over a small catalog domain.`,
	}

	rootCmd.AddCommand(addItemCmd())
	rootCmd.AddCommand(setPriceCmd())
	rootCmd.AddCommand(getItemCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withService starts the infrastructure + catalog fx app, runs fn against
// the wired Service, and tears the app back down.
func withService(fn func(ctx context.Context, svc *catalog.Service) error) error {
	var svc *catalog.Service

	app := fx.New(
		infrastructure.Module,
		catalog.Module,
		fx.Populate(&svc),
		fx.NopLogger,
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	err := fn(context.Background(), svc)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelStop()
	if stopErr := app.Stop(stopCtx); stopErr != nil && err == nil {
		err = fmt.Errorf("stop application: %w", stopErr)
	}

	return err
}

func addItemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-item <item-id> <name> <price>",
		Short: "Add a new catalog item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("price must be an integer: %w", err)
			}

			return withService(func(ctx context.Context, svc *catalog.Service) error {
				if err := svc.AddItem(ctx, args[0], args[1], price); err != nil {
					return err
				}
				fmt.Printf("added item %s (%s, price %d)\n", args[0], args[1], price)
				return nil
			})
		},
	}
}

func setPriceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-price <item-id> <price>",
		Short: "Change an existing catalog item's price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("price must be an integer: %w", err)
			}

			return withService(func(ctx context.Context, svc *catalog.Service) error {
				if err := svc.ChangePrice(ctx, args[0], price); err != nil {
					return err
				}
				fmt.Printf("updated item %s price to %d\n", args[0], price)
				return nil
			})
		},
	}
}

func getItemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-item <item-id>",
		Short: "Print the current projected state of a catalog item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *catalog.Service) error {
				summary, err := svc.CurrentItem(ctx, args[0])
				if err != nil {
					return err
				}
				if !summary.Exists {
					fmt.Printf("item %s not found\n", args[0])
					return nil
				}
				fmt.Printf("item %s: name=%s price=%d\n", summary.ItemID, summary.Name, summary.Price)
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start catalog subscriptions and block until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *catalog.Service) error {
				subs, err := svc.StartSubscriptions(ctx,
					func(ctx context.Context, ev domain.Event[catalog.ItemAdded]) error {
						fmt.Printf("item added: %s %s %d\n", ev.Data.ItemID, ev.Data.Name, ev.Data.Price)
						return nil
					},
					func(ctx context.Context, ev domain.Event[catalog.PriceChanged]) error {
						fmt.Printf("price changed: %s %d\n", ev.Data.ItemID, ev.Data.Price)
						return nil
					},
				)
				if err != nil {
					return fmt.Errorf("start subscriptions: %w", err)
				}
				defer func() {
					for _, sub := range subs {
						sub.Close()
					}
				}()

				fmt.Println("catalog consumer running, press ctrl-c to stop")
				waitForSignal(ctx)
				return nil
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("eventcore 0.1.0")
			return nil
		},
	}
}

func waitForSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
}
