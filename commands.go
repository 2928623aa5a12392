package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tsinghua-fib-lab/sossim-go/server"
	"github.com/tsinghua-fib-lab/sossim-go/task"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
	"github.com/tsinghua-fib-lab/sossim-go/utils/output"
	"golang.org/x/sync/errgroup"
)

func runCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the simulation headless until the tick limit and write outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runSimulation(cmd.Context(), c)
		},
	}
}

func serveCmd(opts *options) *cobra.Command {
	var (
		listen   string
		autoplay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the RPC, websocket and GeoJSON server for interactive stepping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), c, listen, autoplay)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":51102", "listening address")
	cmd.Flags().DurationVar(&autoplay, "autoplay", 0, "step automatically at this interval (0 means manual stepping)")
	return cmd
}

func generateCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the road network and export it as GeoJSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, err := task.NewContext(c)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(ctx.Network().GeoJSON(nil), "", "  ")
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (empty means stdout)")
	return cmd
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runSimulation 无界面运行
// 功能：按配置挂载CSV归档与MongoDB输出，运行到步数上限或收到中断信号
func runSimulation(parent context.Context, c config.Config) error {
	start := time.Now()
	ctx, err := task.NewContext(c)
	if err != nil {
		return err
	}
	end := time.Now()

	var archive *output.Archive
	if c.Output.Dir != "" {
		if archive, err = output.NewArchive(c.Output.Dir, c, start, end); err != nil {
			return err
		}
		ctx.Subscribe(archive)
	}
	var sink *output.MongoSink
	if c.Output.Mongo.URI != "" {
		runID := uuid.New().String()
		if archive != nil {
			runID = archive.RunID()
		}
		if sink, err = output.NewMongoSink(parent, c.Output, runID); err != nil {
			return err
		}
		ctx.Subscribe(sink)
	}

	sigCtx, cancel := signalContext(parent)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCtx.Done():
			ctx.Stop()
		case <-done:
		}
	}()

	s, runErr := ctx.Run(int(c.Control.Step.Total))
	if archive != nil {
		if err := archive.Close(); err != nil {
			log.Errorf("close archive: %v", err)
		}
	}
	if sink != nil {
		if err := sink.Close(context.Background()); err != nil {
			log.Errorf("close mongo sink: %v", err)
		}
	}
	if runErr != nil {
		return runErr
	}
	m := s.Metrics
	log.Infof("finished at step %d: delivered %d, stranded %d, released %d, no path %d, contention waits %d, reroutes %d, explorations %d, distance %.2f",
		s.Tick, m.Delivered, m.Stranded, m.Released, m.NoPath, m.ContentionWaits, m.Reroutes, m.Explorations, m.Distance)
	log.Infof("cargo: waiting %d, assigned %d, in transit %d, delivered %d",
		m.Cargo.Waiting, m.Cargo.Assigned, m.Cargo.InTransit, m.Cargo.Delivered)
	return nil
}

// serve 启动服务器，可选自动推进
func serve(parent context.Context, c config.Config, listen string, autoplay time.Duration) error {
	ctx, err := task.NewContext(c)
	if err != nil {
		return err
	}
	srv := server.New(ctx)
	fmt.Printf("sossim server %s\n", srv.ID())

	sigCtx, cancel := signalContext(parent)
	defer cancel()
	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, listen)
	})
	if autoplay > 0 {
		g.Go(func() error {
			return srv.Autoplay(gctx, autoplay)
		})
	}
	return g.Wait()
}
