package scoring

import (
	"fmt"
	"math"
	"math/rand"
)

type Weights struct {
	Bias         float64   `json:"bias" yaml:"bias"`
	Coefficients []float64 `json:"coefficients" yaml:"coefficients"`
}

type Metrics struct {
	Loss     float64 `json:"loss" yaml:"loss"`
	Accuracy float64 `json:"accuracy" yaml:"accuracy"`
}

// Model is the persisted logistic regression artifact.
type Model struct {
	Type         string   `json:"type" yaml:"type"`
	Algorithm    string   `json:"algorithm" yaml:"algorithm"`
	FeatureNames []string `json:"feature_names" yaml:"feature_names"`
	Weights      Weights  `json:"weights" yaml:"weights"`
	Metrics      Metrics  `json:"metrics" yaml:"metrics"`
}

type TrainOptions struct {
	Epochs       int
	LearningRate float64
}

var DefaultTrainOptions = TrainOptions{Epochs: 600, LearningRate: 0.5}

func (m *Model) Validate() error {
	if len(m.FeatureNames) == 0 {
		return fmt.Errorf("artifact missing feature names")
	}
	if len(m.Weights.Coefficients) != len(m.FeatureNames) {
		return fmt.Errorf("artifact has %d coefficients for %d features", len(m.Weights.Coefficients), len(m.FeatureNames))
	}
	return nil
}

// Probability returns P(violation) for one sample ordered like FeatureNames.
func (m *Model) Probability(sample []float64) (float64, error) {
	if len(sample) != len(m.Weights.Coefficients) {
		return 0, fmt.Errorf("sample has %d features, model expects %d", len(sample), len(m.Weights.Coefficients))
	}
	return sigmoid(dot(m.Weights.Coefficients, sample) + m.Weights.Bias), nil
}

// Train fits a logistic regression with full-batch gradient descent.
func Train(featureNames []string, samples [][]float64, labels []float64, opts TrainOptions) *Model {
	if opts.Epochs <= 0 {
		opts.Epochs = 200
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.01
	}

	model := &Model{
		Type:         "classification",
		Algorithm:    "logistic_regression",
		FeatureNames: append([]string(nil), featureNames...),
		Weights:      Weights{Coefficients: make([]float64, len(featureNames))},
	}
	n := len(samples)
	if n == 0 {
		return model
	}

	weights := model.Weights.Coefficients
	var bias float64
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		grad := make([]float64, len(weights))
		var biasGrad float64
		for i, sample := range samples {
			diff := sigmoid(dot(weights, sample)+bias) - labels[i]
			for j := range weights {
				grad[j] += diff * sample[j]
			}
			biasGrad += diff
		}
		for j := range weights {
			weights[j] -= opts.LearningRate * grad[j] / float64(n)
		}
		bias -= opts.LearningRate * biasGrad / float64(n)
	}

	model.Weights.Bias = bias
	model.Metrics = evaluate(model, samples, labels)
	return model
}

// SyntheticDataset generates labelled listings: unverified sellers with few
// images and short descriptions lean towards violations.
func SyntheticDataset(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	samples := make([][]float64, n)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		verified := 0.0
		if rng.Float64() < 0.5 {
			verified = 1
		}
		images := float64(rng.Intn(11)) / 10.0
		descLen := rng.Float64()
		category := float64(rng.Intn(101)) / 100.0

		score := 2.5*(1-verified) - 2*images - 1.5*descLen + 0.5*category - 0.5 + rng.NormFloat64()*0.3
		samples[i] = []float64{verified, images, descLen, category}
		if score > 0 {
			labels[i] = 1
		}
	}
	return samples, labels
}

// TrainDefault trains the moderation model on the synthetic dataset.
func TrainDefault() *Model {
	samples, labels := SyntheticDataset(2000, 42)
	return Train(FeatureNames, samples, labels, DefaultTrainOptions)
}

func evaluate(m *Model, samples [][]float64, labels []float64) Metrics {
	var loss float64
	var correct int
	for i, sample := range samples {
		p := sigmoid(dot(m.Weights.Coefficients, sample) + m.Weights.Bias)
		loss += -labels[i]*math.Log(p+1e-9) - (1-labels[i])*math.Log(1-p+1e-9)
		if (p > 0.5 && labels[i] == 1) || (p <= 0.5 && labels[i] == 0) {
			correct++
		}
	}
	return Metrics{
		Loss:     loss / float64(len(samples)),
		Accuracy: float64(correct) / float64(len(samples)),
	}
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := range weights {
		sum += weights[i] * sample[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
