// Train fits the triage decision tree and writes the model artifacts that
// the server loads at startup.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/linnemanlabs/medtriage/internal/training"
)

const appName = "medtriage"
const component = "train"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	v.AppName = appName
	v.Component = component
	vi := v.Get()

	fs := flag.NewFlagSet(component, flag.ContinueOnError)

	var (
		trainCfg   training.Config
		logCfg     log.Config
		configPath string
	)
	trainCfg.RegisterFlags(fs)
	logCfg.RegisterFlags(fs)
	fs.StringVar(&configPath, "config", "", "YAML file with training settings (flags and env win)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// env fills anything not set on the command line, the YAML file only
	// what neither set
	cfg.FillFromEnv(fs, "MEDTRIAGE_TRAIN_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if configPath != "" {
		if err := trainCfg.ApplyFile(fs, configPath); err != nil {
			return err
		}
	}

	if err := errors.Join(trainCfg.Validate(), logCfg.Validate()); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	ds, err := loadDataset(ctx, trainCfg)
	if err != nil {
		return err
	}
	L.Info(ctx, "dataset ready", "rows", ds.Len(), "source", datasetSource(trainCfg))

	if trainCfg.WriteDataset != "" {
		if err := writeDataset(trainCfg.WriteDataset, ds); err != nil {
			return err
		}
		L.Info(ctx, "wrote dataset", "path", trainCfg.WriteDataset)
	}

	res, err := training.Train(ctx, ds, trainCfg)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	if err := res.Classifier.Save(trainCfg.OutDir); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	L.Info(ctx, "model saved",
		"dir", trainCfg.OutDir,
		"training_id", res.Report.TrainingID,
		"test_accuracy", res.Report.Test.Accuracy,
		"duration", res.Report.Duration,
	)

	_, err = io.WriteString(stdout, res.Report.Format())
	return err
}

func loadDataset(ctx context.Context, c training.Config) (*training.Dataset, error) {
	if c.DatasetPath == "" {
		log.FromContext(ctx).Info(ctx, "generating synthetic dataset", "records", c.Records, "seed", c.Seed)
		return training.Generate(c.Records, c.Seed), nil
	}

	f, err := os.Open(c.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	ds, err := training.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", c.DatasetPath, err)
	}
	return ds, nil
}

func writeDataset(path string, ds *training.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset file: %w", err)
	}
	if err := ds.WriteCSV(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write dataset: %w", err)
	}
	return f.Close()
}

func datasetSource(c training.Config) string {
	if c.DatasetPath == "" {
		return "synthetic"
	}
	return c.DatasetPath
}
