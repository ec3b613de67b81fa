package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	torch "github.com/wangkuiyi/gotorch"
	"github.com/wangkuiyi/gotorch/nn/initializer"

	"flock/client"
	"flock/config"
	"flock/dataset"
	"flock/ml"
	"flock/status"
	"flock/transport"
	"flock/util"
)

func main() {
	sub := "run"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub = args[0]
		args = args[1:]
	}

	switch sub {
	case "run":
		runCmd(args)
	case "predict":
		predictCmd(args)
	default:
		fmt.Fprintf(os.Stderr, "Usage: %s [run|predict] ...\n", os.Args[0])
		os.Exit(2)
	}
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "conf/base.yaml", "path to YAML config")
	server := fs.String("server", "", "override orchestrator address")
	statusAddr := fs.String("status", "", "override diagnostics address")
	cid := fs.String("cid", "", "override client id")
	numClients := fs.Int("num-clients", 0, "override total client count")
	batchSize := fs.Int("batch-size", 0, "override batch size")
	seed := fs.Int64("seed", 0, "override PRNG seed")
	fs.Parse(args)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyOverrides(config.Overrides{
		ServerAddress: *server,
		StatusAddress: *statusAddr,
		ClientID:      *cid,
		NumClients:    *numClients,
		BatchSize:     *batchSize,
		Seed:          *seed,
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := util.NewLogger("flock", cfg.LogLevel, cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	device := ml.Device()
	logger.Info("device selected", "cuda", torch.IsCUDAAvailable())
	initializer.ManualSeed(cfg.Seed)

	parts, err := dataset.Prepare(cfg.TrainArchive, cfg.ValArchive,
		cfg.NumClients, cfg.BatchSize, !cfg.NonIID, cfg.Seed)
	if err != nil {
		logger.Error("preparing dataset", "error", err)
		os.Exit(1)
	}

	defaults := client.Defaults{
		LearningRate: cfg.Defaults.LearningRate,
		Momentum:     cfg.Defaults.Momentum,
		LocalEpochs:  cfg.Defaults.LocalEpochs,
	}
	clientFn := client.NewClientFunc(func() client.LocalModel {
		return ml.NewPredictor(device, logger.Named("ml"))
	}, parts, defaults, logger)

	c, err := clientFn(cfg.ClientID)
	if err != nil {
		logger.Error("spawning client", "cid", cfg.ClientID, "error", err)
		os.Exit(1)
	}
	if cfg.CheckpointPath != "" {
		c.WithCheckpoint(cfg.CheckpointPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := status.NewTracker(cfg.ClientID)
	if cfg.StatusAddress != "" {
		srv := status.NewServer(cfg.StatusAddress, tracker, logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("diagnostics listener stopped", "error", err)
			}
		}()
	}

	runner := transport.NewRunner(cfg.ClientID, cfg.ServerAddress, c, logger, tracker.Observe)
	logger.Info("starting client", "cid", cfg.ClientID, "server", cfg.ServerAddress)
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("client stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("client done")
}

func predictCmd(args []string) {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	load := fs.String("load", "./data/predictor.gob", "checkpoint to load")
	fs.Parse(args)

	logger := hclog.New(&hclog.LoggerOptions{Name: "flock"})
	pred, err := ml.Load(*load, ml.Device(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load checkpoint: %v\n", err)
		os.Exit(1)
	}

	for _, path := range fs.Args() {
		class, err := pred.PredictFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		fmt.Printf("%s: %d\n", path, class)
	}
}
