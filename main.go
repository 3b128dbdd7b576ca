package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "sheet-bridge",
		Short:         "Bridge between a live workbook and an asynchronous mutator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), exportCmd(), importCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		interval   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge server and reconciliation poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if interval > 0 {
				cfg.PollInterval = interval.String()
			}
			if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
				log.SetLevel(level)
			}
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

			snapshots := NewSnapshotStore()
			updates := NewUpdateQueues()
			creations := NewCreationQueue(snapshots)
			audit := NewAuditLog()

			hub := newHub(snapshots)
			doc := NewWorkbook(hub)
			hub.AttachDocument(doc)
			go hub.run()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			poller := NewPoller(cfg.Interval(), updates, creations, doc, audit)
			go poller.Run(ctx)

			srv := &http.Server{
				Addr:    cfg.Addr,
				Handler: NewServer(snapshots, updates, creations, audit, hub).Router(),
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			log.WithField("addr", cfg.Addr).Info("server started")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to yaml config file")
	cmd.Flags().StringVar(&addr, "addr", "", "http listen address (overrides config)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "reconcile interval (overrides config)")
	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <snapshot.json> <workbook.xlsx>",
		Short: "Write a snapshot JSON file out as an xlsx workbook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var sheets []SheetSnapshot
			if err := json.Unmarshal(data, &sheets); err != nil {
				return fmt.Errorf("parse snapshot: %w", err)
			}
			st := NewSnapshotStore()
			st.ReplaceSnapshot(sheets)
			if err := exportSnapshot(st, args[1]); err != nil {
				return err
			}
			log.WithFields(log.Fields{"sheets": len(sheets), "out": args[1]}).Info("exported")
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <workbook.xlsx> <snapshot.json>",
		Short: "Read an xlsx workbook into a snapshot JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheets, err := importWorkbook(args[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(sheets, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				return err
			}
			log.WithFields(log.Fields{"sheets": len(sheets), "out": args[1]}).Info("imported")
			return nil
		},
	}
}
