package training

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the training run settings. Fields can come from a YAML file,
// environment variables or flags; explicit flags win.
type Config struct {
	DatasetPath     string  `yaml:"dataset"`
	Records         int     `yaml:"records"`
	Seed            uint64  `yaml:"seed"`
	TestSize        float64 `yaml:"test_size"`
	CVFolds         int     `yaml:"cv_folds"`
	MaxDepth        int     `yaml:"max_depth"`
	MinSamplesSplit int     `yaml:"min_samples_split"`
	MinSamplesLeaf  int     `yaml:"min_samples_leaf"`
	OutDir          string  `yaml:"out_dir"`
	WriteDataset    string  `yaml:"write_dataset"`
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.DatasetPath, "dataset", "", "CSV dataset to train on (empty = generate synthetic records)")
	fs.IntVar(&c.Records, "records", 2000, "number of synthetic records to generate when no dataset is given")
	fs.Uint64Var(&c.Seed, "seed", 42, "seed for data generation and the train/test split")
	fs.Float64Var(&c.TestSize, "test-size", 0.2, "fraction of rows held out for evaluation (0..1 exclusive)")
	fs.IntVar(&c.CVFolds, "cv-folds", 5, "stratified cross-validation folds (0 = skip, otherwise 2..20)")
	fs.IntVar(&c.MaxDepth, "max-depth", 12, "maximum tree depth (1..64)")
	fs.IntVar(&c.MinSamplesSplit, "min-samples-split", 2, "minimum rows required to split a node")
	fs.IntVar(&c.MinSamplesLeaf, "min-samples-leaf", 5, "minimum rows in each leaf")
	fs.StringVar(&c.OutDir, "out", "models", "directory to write model artifacts into")
	fs.StringVar(&c.WriteDataset, "write-dataset", "", "also write the generated dataset to this CSV path")
}

// ApplyFile loads YAML settings from path into c. Flags explicitly set on fs
// keep their values.
func (c *Config) ApplyFile(fs *flag.FlagSet, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	set := make(map[string]string)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = f.Value.String() })

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	for name, val := range set {
		if err := fs.Set(name, val); err != nil {
			return fmt.Errorf("reapply flag -%s: %w", name, err)
		}
	}
	return nil
}

// Validate checks all configuration fields for correctness.
func (c *Config) Validate() error {
	var errs []error

	if c.DatasetPath == "" && c.Records < 10 {
		errs = append(errs, fmt.Errorf("invalid RECORDS %d (must be >= 10 when generating)", c.Records))
	}
	if c.TestSize <= 0 || c.TestSize >= 1 {
		errs = append(errs, fmt.Errorf("invalid TEST_SIZE %v (must be between 0 and 1)", c.TestSize))
	}
	if c.CVFolds != 0 && (c.CVFolds < 2 || c.CVFolds > 20) {
		errs = append(errs, fmt.Errorf("invalid CV_FOLDS %d (must be 0 or 2..20)", c.CVFolds))
	}
	if c.MaxDepth < 1 || c.MaxDepth > 64 {
		errs = append(errs, fmt.Errorf("invalid MAX_DEPTH %d (must be 1..64)", c.MaxDepth))
	}
	if c.MinSamplesSplit < 2 {
		errs = append(errs, fmt.Errorf("invalid MIN_SAMPLES_SPLIT %d (must be >= 2)", c.MinSamplesSplit))
	}
	if c.MinSamplesLeaf < 1 {
		errs = append(errs, fmt.Errorf("invalid MIN_SAMPLES_LEAF %d (must be >= 1)", c.MinSamplesLeaf))
	}
	if c.OutDir == "" {
		errs = append(errs, errors.New("OUT is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
