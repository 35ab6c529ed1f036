package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/config"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/engine"
)

func main() {
	var (
		configPath  = flag.String("config", "", "YAML experiment file (overrides -scenario)")
		scenario    = flag.String("scenario", "baseline_100n_10b", "named scenario from the library")
		seed        = flag.Int64("seed", -1, "run a single seed instead of the configured list")
		rounds      = flag.Int("rounds", 0, "override max_rounds")
		tracePath   = flag.String("trace", "", "write a JSONL event trace")
		metricsAddr = flag.String("metrics", "", "serve Prometheus metrics on this address (e.g. :9090)")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if err := run(*configPath, *scenario, *seed, *rounds, *tracePath, *metricsAddr, *verbose); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(configPath, scenario string, seed int64, rounds int, tracePath, metricsAddr string, verbose bool) error {
	var (
		exp config.Experiment
		err error
	)
	if configPath != "" {
		exp, err = config.Load(configPath)
	} else {
		exp, err = config.Scenario(scenario)
	}
	if err != nil {
		return err
	}
	if rounds > 0 {
		exp.MaxRounds = rounds
	}
	seeds := exp.Seeds
	if seed >= 0 {
		seeds = []int64{seed}
	}

	logCfg := zap.NewProductionConfig()
	if verbose {
		logCfg = zap.NewDevelopmentConfig()
	}
	logger, err := logCfg.Build()
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if herr := http.ListenAndServe(metricsAddr, mux); herr != nil {
				logger.Warn("metrics server stopped", zap.Error(herr))
			}
		}()
	}

	var trace *engine.Recorder
	if tracePath != "" {
		trace, err = engine.NewRecorder(tracePath)
		if err != nil {
			return err
		}
		defer trace.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pterm.DefaultSection.Printf("%s: %s", exp.Name, exp.Description)
	pterm.Info.Printf("N=%d, f=%d Byzantine, SF%d, duty %.1f%%, %d seed(s)\n",
		exp.Network.NumNodes, exp.NumByzantine(), exp.Network.SpreadingFactor,
		exp.Network.DutyCycle*100, len(seeds))

	progress, _ := pterm.DefaultProgressbar.WithTotal(len(seeds)).WithTitle("runs").Start()
	rows := pterm.TableData{{"seed", "status", "rounds", "first all-inside", "delivery", "mean |err|"}}

	converged := 0
	for _, s := range seeds {
		eng, err := engine.New(engine.Options{
			Experiment:     exp,
			Seed:           s,
			Logger:         logger,
			Registry:       registry,
			Trace:          trace,
			StopWhenStable: true,
		})
		if err != nil {
			return err
		}
		res, err := eng.Run(ctx)
		if err != nil {
			return err
		}
		progress.Increment()

		if res.Status == engine.StatusConverged {
			converged++
		}
		meanErr := 0.0
		if len(res.Metrics) > 0 {
			meanErr = res.Metrics[len(res.Metrics)-1].MeanAbsError
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", s),
			res.Status,
			fmt.Sprintf("%d", res.Rounds),
			fmt.Sprintf("%d", res.FirstAllInside),
			fmt.Sprintf("%.3f", res.DeliveryRatio),
			fmt.Sprintf("%.3f", meanErr),
		})
		if ctx.Err() != nil {
			break
		}
	}
	progress.Stop()

	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}
	pterm.Success.Printf("%d/%d runs converged\n", converged, len(seeds))
	return nil
}
