// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package recommend

import (
	"fmt"
	"math"
	"time"

	"github.com/tlogandesigns/open-pair/internal/models"
)

// Model is a trained linear scorer over the fixed feature schema. Inputs are
// standardized with the training-set means and standard deviations, and the
// prediction is clipped to [0,1]. A Model is immutable after fitting; the
// Scorer swaps whole models atomically.
type Model struct {
	// Version increments on every promotion. Version 0 is reserved for
	// "no model" (heuristic only).
	Version int `json:"version"`

	// TrainedAt is when the fit completed.
	TrainedAt time.Time `json:"trained_at"`

	// Weights are the standardized-space coefficients, one per feature.
	Weights []float64 `json:"weights"`

	// Intercept is the bias term.
	Intercept float64 `json:"intercept"`

	// Means and Stds are the per-feature standardization parameters
	// captured from the training set.
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`

	// SampleCount is the number of training examples.
	SampleCount int `json:"sample_count"`

	// HoldoutMSE is the mean squared error on the held-out slice.
	HoldoutMSE float64 `json:"holdout_mse"`
}

// Predict returns the model's success likelihood for one feature vector,
// clipped to [0,1].
func (m *Model) Predict(fv FeatureVector) float64 {
	x := fv.Vector()
	y := m.Intercept
	for i, v := range x {
		std := m.Stds[i]
		if std == 0 {
			std = 1
		}
		y += m.Weights[i] * ((v - m.Means[i]) / std)
	}
	return clip01(y)
}

// Evaluate returns the mean squared error of the model over a labeled set.
func (m *Model) Evaluate(features []FeatureVector, targets []float64) float64 {
	if len(features) == 0 {
		return 0
	}
	var sum float64
	for i, fv := range features {
		d := m.Predict(fv) - targets[i]
		sum += d * d
	}
	return sum / float64(len(features))
}

// TargetScore derives the training label from a measured outcome: a weighted
// blend of attendance, lead generation, follow-ups, and offers, each
// normalized against a fixed expectation and clipped so one runaway dimension
// cannot dominate. The result is in [0,1].
func TargetScore(o models.OutcomeMetrics) float64 {
	attendance := clip01(float64(o.Attendees) / 20.0)
	leads := clip01(float64(o.Leads) / 5.0)
	followUps := clip01(float64(o.FollowUps) / 3.0)
	offers := clip01(float64(o.Offers) / 1.0)
	return clip01(0.2*attendance + 0.3*leads + 0.3*followUps + 0.2*offers)
}

// FitRidge fits a ridge-regularized linear model on standardized features.
// It fails when the sample is empty, the label count mismatches, or the
// normal-equation system is singular despite regularization.
func FitRidge(features []FeatureVector, targets []float64, ridge float64) (*Model, error) {
	n := len(features)
	if n == 0 {
		return nil, fmt.Errorf("fit ridge: %w", ErrInsufficientData)
	}
	if len(targets) != n {
		return nil, fmt.Errorf("fit ridge: %d features but %d targets", n, len(targets))
	}
	if ridge < 0 {
		ridge = 0
	}

	p := FeatureCount
	rows := make([][]float64, n)
	for i, fv := range features {
		rows[i] = fv.Vector()
	}

	means, stds := standardizationParams(rows)
	for _, row := range rows {
		for j := range row {
			row[j] = (row[j] - means[j]) / stds[j]
		}
	}

	// Center the targets so the intercept falls out as the target mean.
	var targetMean float64
	for _, t := range targets {
		targetMean += t
	}
	targetMean /= float64(n)

	// Normal equations (X^T X + lambda*I) w = X^T y on centered data.
	xtx := make([][]float64, p)
	xty := make([]float64, p)
	for j := 0; j < p; j++ {
		xtx[j] = make([]float64, p)
	}
	for i, row := range rows {
		yc := targets[i] - targetMean
		for j := 0; j < p; j++ {
			xty[j] += row[j] * yc
			for k := j; k < p; k++ {
				xtx[j][k] += row[j] * row[k]
			}
		}
	}
	for j := 0; j < p; j++ {
		for k := 0; k < j; k++ {
			xtx[j][k] = xtx[k][j]
		}
		xtx[j][j] += ridge
	}

	weights, err := solveLinear(xtx, xty)
	if err != nil {
		return nil, fmt.Errorf("fit ridge: %w", err)
	}

	return &Model{
		TrainedAt:   time.Now().UTC(),
		Weights:     weights,
		Intercept:   targetMean,
		Means:       means,
		Stds:        stds,
		SampleCount: n,
	}, nil
}

// standardizationParams computes per-column means and standard deviations.
// Constant columns get a std of 1 so standardization is a no-op for them.
func standardizationParams(rows [][]float64) (means, stds []float64) {
	p := FeatureCount
	n := float64(len(rows))
	means = make([]float64, p)
	stds = make([]float64, p)
	for _, row := range rows {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= n
	}
	for _, row := range rows {
		for j, v := range row {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
		if stds[j] < 1e-12 {
			stds[j] = 1
		}
	}
	return means, stds
}

// solveLinear solves Ax = b by Gaussian elimination with partial pivoting.
// A is modified in place.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular system at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			f := a[row][col] / a[col][col]
			if f == 0 {
				continue
			}
			for k := col; k < n; k++ {
				a[row][k] -= f * a[col][k]
			}
			b[row] -= f * b[col]
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
