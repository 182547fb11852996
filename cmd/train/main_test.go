package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linnemanlabs/medtriage/internal/model"
	"github.com/linnemanlabs/medtriage/internal/training"
)

func TestRun_GeneratesAndSaves(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "models")
	csvPath := filepath.Join(dir, "data.csv")

	var stdout bytes.Buffer
	err := run(context.Background(), []string{
		"-records", "400",
		"-seed", "7",
		"-cv-folds", "3",
		"-out", out,
		"-write-dataset", csvPath,
	}, &stdout)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	clf, err := model.Load(out)
	if err != nil {
		t.Fatalf("model.Load: %v", err)
	}
	if !strings.Contains(stdout.String(), clf.TrainingID()) {
		t.Errorf("report does not mention training ID %s:\n%s", clf.TrainingID(), stdout.String())
	}
	if !strings.Contains(stdout.String(), "3-fold CV accuracy") {
		t.Errorf("report missing CV line:\n%s", stdout.String())
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("open written dataset: %v", err)
	}
	defer func() { _ = f.Close() }()
	ds, err := training.ReadCSV(f)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if ds.Len() != 400 {
		t.Errorf("written dataset rows = %d, want 400", ds.Len())
	}
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "models")
	cfgPath := filepath.Join(dir, "train.yaml")

	yaml := "records: 300\nseed: 3\ncv_folds: 0\nmax_depth: 4\nout_dir: " + out + "\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"-config", cfgPath}, &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}

	clf, err := model.Load(out)
	if err != nil {
		t.Fatalf("model.Load: %v", err)
	}
	if got := clf.Params().MaxDepth; got != 4 {
		t.Errorf("MaxDepth = %d, want 4 from config file", got)
	}
	if strings.Contains(stdout.String(), "CV accuracy") {
		t.Error("cv_folds: 0 should skip cross-validation")
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantSub string
	}{
		{"unknown flag", []string{"-nope"}, "not defined"},
		{"invalid test size", []string{"-test-size", "1.5"}, "TEST_SIZE"},
		{"missing dataset", []string{"-dataset", "/nonexistent/data.csv"}, "open dataset"},
		{"missing config", []string{"-config", "/nonexistent/train.yaml"}, "read config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-out", t.TempDir()}, tt.args...)
			err := run(context.Background(), args, &bytes.Buffer{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}
