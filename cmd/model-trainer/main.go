package main

import (
	"flag"

	"github.com/admoderation/platform/pkg/common/config"
	"github.com/admoderation/platform/pkg/common/logger"
	"github.com/admoderation/platform/pkg/scoring"
)

func main() {
	logger.Init("model-trainer")
	cfg := config.Load()

	out := flag.String("out", cfg.ModelPath, "artifact path (.json, .yaml or .yml)")
	samples := flag.Int("samples", 2000, "synthetic samples to train on")
	seed := flag.Int64("seed", 42, "dataset seed")
	flag.Parse()

	features, labels := scoring.SyntheticDataset(*samples, *seed)
	model := scoring.Train(scoring.FeatureNames, features, labels, scoring.DefaultTrainOptions)

	if err := scoring.WriteArtifact(*out, model); err != nil {
		logger.Log.WithError(err).Fatal("Failed to write model artifact")
	}

	logger.Log.WithFields(map[string]interface{}{
		"path":     *out,
		"samples":  *samples,
		"loss":     model.Metrics.Loss,
		"accuracy": model.Metrics.Accuracy,
	}).Info("Model trained")
}
