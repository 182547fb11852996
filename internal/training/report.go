package training

import (
	"fmt"
	"strings"

	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// Format renders the report as plain text for the training CLI.
func (r *Report) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Training run %s\n", r.TrainingID)
	fmt.Fprintf(&b, "Rows: %d (train %d, test %d)\n", r.Rows, r.TrainRows, r.TestRows)
	b.WriteString("Class distribution:\n")
	for _, lvl := range urgency.Levels {
		fmt.Fprintf(&b, "  %-10s %5d  weight %.4f\n", lvl, r.ClassCounts[lvl], r.ClassWeights[lvl])
	}
	fmt.Fprintf(&b, "Tree: depth %d, %d leaves (max_depth=%d, min_samples_leaf=%d)\n",
		r.Depth, r.Leaves, r.Params.MaxDepth, r.Params.MinSamplesLeaf)

	if r.CV != nil {
		fmt.Fprintf(&b, "\n%d-fold CV accuracy: %.4f ± %.4f\n", len(r.CV.Folds), r.CV.Mean, r.CV.Std)
	}

	if m := r.Test; m != nil {
		fmt.Fprintf(&b, "\nTest accuracy: %.4f (%d/%d)\n\n", m.Accuracy, m.Correct, m.Total)
		fmt.Fprintf(&b, "%-10s %9s %9s %9s %8s\n", "", "precision", "recall", "f1", "support")
		for _, c := range m.PerClass {
			fmt.Fprintf(&b, "%-10s %9.4f %9.4f %9.4f %8d\n", c.Level, c.Precision, c.Recall, c.F1, c.Support)
		}
		fmt.Fprintf(&b, "%-10s %9.4f %9.4f %9.4f %8d\n", "macro avg", m.MacroPrecision, m.MacroRecall, m.MacroF1, m.Total)

		b.WriteString("\nConfusion matrix (rows=actual, cols=predicted):\n")
		fmt.Fprintf(&b, "%-10s", "")
		for _, lvl := range urgency.Levels {
			fmt.Fprintf(&b, " %9s", lvl)
		}
		b.WriteString("\n")
		for i, lvl := range urgency.Levels {
			fmt.Fprintf(&b, "%-10s", lvl)
			for _, n := range m.Confusion[i] {
				fmt.Fprintf(&b, " %9d", n)
			}
			b.WriteString("\n")
		}
	}

	if len(r.Importances) > 0 {
		b.WriteString("\nFeature importances:\n")
		for _, imp := range r.Importances {
			bar := strings.Repeat("#", int(imp.Value*40))
			fmt.Fprintf(&b, "  %-22s %-40s %.4f\n", imp.Column, bar, imp.Value)
		}
	}

	return b.String()
}
