package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ringstore/internal/api/client"
	"ringstore/internal/config"
	"ringstore/internal/messaging"
)

var (
	operatorURL   string
	operatorToken string
)

var rootCmd = &cobra.Command{
	Use:   "ringstore-admin",
	Short: "Ringstore operator administration CLI",
	Long:  `A command-line interface for driving the operator HTTP API: manifest inspection, manual compaction, and anti-entropy repair sessions.`,
}

func newClient() *client.Client {
	return client.New(&client.Config{
		BaseURL:    operatorURL,
		APIKey:     operatorToken,
		Timeout:    30 * time.Second,
		RetryCount: 2,
	})
}

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Manifest inspection",
}

var manifestStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-level SST counts and sizes for a table",
	RunE: func(cmd *cobra.Command, args []string) error {
		table, _ := cmd.Flags().GetString("table")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		levels, err := newClient().GetManifest(ctx, table)
		if err != nil {
			return err
		}
		fmt.Printf("Manifest for %s:\n", table)
		for _, l := range levels {
			fmt.Printf("  L%-2d  files=%-4d  size=%d bytes\n", l.Level, l.FileCount, l.SizeBytes)
		}
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Manual compaction",
}

var compactRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger a manual compaction for a table",
	RunE: func(cmd *cobra.Command, args []string) error {
		table, _ := cmd.Flags().GetString("table")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result, err := newClient().TriggerCompaction(ctx, table)
		if err != nil {
			return err
		}
		if result.TaskID == "" {
			fmt.Println(result.Status)
			return nil
		}
		fmt.Printf("scheduled task %s: target_level=%d inputs=%d\n", result.TaskID, result.TargetLevel, result.Inputs)
		return nil
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Anti-entropy repair session control",
}

var repairStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a repair session",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		keyspace, _ := cmd.Flags().GetString("keyspace")
		tables, _ := cmd.Flags().GetStringSlice("tables")
		lowerHex, _ := cmd.Flags().GetString("lower")
		upperHex, _ := cmd.Flags().GetString("upper")
		endpoints, _ := cmd.Flags().GetStringSlice("endpoints")
		sequential, _ := cmd.Flags().GetBool("sequential")
		gcGrace, _ := cmd.Flags().GetInt64("gc-grace-seconds")
		maxDepth, _ := cmd.Flags().GetInt("max-tree-depth")

		lower, err := hex.DecodeString(lowerHex)
		if err != nil {
			return fmt.Errorf("invalid --lower: %w", err)
		}
		upper, err := hex.DecodeString(upperHex)
		if err != nil {
			return fmt.Errorf("invalid --upper: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		view, err := newClient().StartRepair(ctx, client.StartRepairRequest{
			ID:             id,
			Keyspace:       keyspace,
			Tables:         tables,
			Lower:          lower,
			Upper:          upper,
			Endpoints:      endpoints,
			Sequential:     sequential,
			GCGraceSeconds: gcGrace,
			MaxTreeDepth:   maxDepth,
		})
		if err != nil {
			return err
		}
		printSessionView(view)
		return nil
	},
}

var repairStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a repair session's state",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		view, err := newClient().RepairStatus(ctx, id)
		if err != nil {
			return err
		}
		printSessionView(view)
		return nil
	},
}

var repairTerminateCmd = &cobra.Command{
	Use:   "terminate",
	Short: "Forcibly fail a running repair session",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := newClient().TerminateRepair(ctx, id); err != nil {
			return err
		}
		fmt.Println("terminating")
		return nil
	},
}

func printSessionView(v *client.RepairSessionView) {
	fmt.Printf("session %s: %s\n", v.ID, v.State)
	if v.Error != "" {
		fmt.Printf("  error: %s\n", v.Error)
	}
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Compaction/repair event stream",
}

var watchedEventTypes = []messaging.EventType{
	messaging.EventCompactionStart,
	messaging.EventCompactionEnd,
	messaging.EventCompactionFailed,
	messaging.EventRepairSessionState,
	messaging.EventRepairStreamStarted,
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print compaction/repair events as they arrive on the Kafka event bus",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		consumer, err := messaging.NewKafkaConsumer(cfg.Kafka.GroupID, &cfg.Kafka)
		if err != nil {
			return fmt.Errorf("new kafka consumer: %w", err)
		}
		defer consumer.Close()

		events := messaging.NewEventConsumer(consumer)
		for _, t := range watchedEventTypes {
			eventType := t
			events.RegisterHandler(eventType, messaging.EventHandlerFunc(func(ctx context.Context, event *messaging.Event) error {
				fmt.Printf("[%s] %s source=%s data=%v\n", event.Timestamp.Format(time.RFC3339), event.Type, event.Source, event.Data)
				return nil
			}))
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := events.Subscribe(ctx, watchedEventTypes); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}

		fmt.Println("watching for compaction/repair events, ctrl-c to stop")
		if err := events.Consume(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&operatorURL, "operator-url", "http://localhost:8080", "operator API base URL")
	rootCmd.PersistentFlags().StringVar(&operatorToken, "token", os.Getenv("RINGSTORE_OPERATOR_TOKEN"), "operator API bearer token")

	manifestStatusCmd.Flags().String("table", "", "table key (<keyspace>.<table>)")
	manifestStatusCmd.MarkFlagRequired("table")
	manifestCmd.AddCommand(manifestStatusCmd)

	compactRunCmd.Flags().String("table", "", "table key (<keyspace>.<table>)")
	compactRunCmd.MarkFlagRequired("table")
	compactCmd.AddCommand(compactRunCmd)

	repairStartCmd.Flags().String("id", "", "session ID (minted by the operator if omitted)")
	repairStartCmd.Flags().String("keyspace", "", "keyspace")
	repairStartCmd.Flags().StringSlice("tables", nil, "tables to repair")
	repairStartCmd.Flags().String("lower", "00", "range lower bound token, hex-encoded")
	repairStartCmd.Flags().String("upper", "ff", "range upper bound token, hex-encoded")
	repairStartCmd.Flags().StringSlice("endpoints", nil, "participating endpoints")
	repairStartCmd.Flags().Bool("sequential", false, "dispatch tree/snapshot requests sequentially instead of in parallel")
	repairStartCmd.Flags().Int64("gc-grace-seconds", 0, "tombstone GC grace period")
	repairStartCmd.Flags().Int("max-tree-depth", 15, "Merkle tree max split depth")
	repairStartCmd.MarkFlagRequired("keyspace")
	repairStartCmd.MarkFlagRequired("tables")
	repairCmd.AddCommand(repairStartCmd)

	repairStatusCmd.Flags().String("id", "", "session ID")
	repairStatusCmd.MarkFlagRequired("id")
	repairCmd.AddCommand(repairStatusCmd)

	repairTerminateCmd.Flags().String("id", "", "session ID")
	repairTerminateCmd.MarkFlagRequired("id")
	repairCmd.AddCommand(repairTerminateCmd)

	eventsCmd.AddCommand(eventsWatchCmd)

	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(eventsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
