package experiment

import (
	"context"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	apperrors "metriscope/internal/errors"
)

// bootstrapCI estimates a percentile confidence interval for the uplift
// by resampling both arms with replacement and recomputing the uplift on
// each resample. When a resampled control mean is zero the absolute
// difference stands in. Each worker owns a seeded generator, so a given
// pair of arms always yields the same interval.
func (a *Analyzer) bootstrapCI(ctx context.Context, controlVals, testVals []float64) (float64, float64, error) {
	resamples := a.opts.BootstrapResamples
	workers := a.opts.BootstrapWorkers
	if workers > resamples {
		workers = resamples
	}

	diffs := make([]float64, resamples)
	chunk := (resamples + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > resamples {
			end = resamples
		}
		if start >= end {
			break
		}
		rng := rand.New(rand.NewSource(bootstrapSeed(controlVals, testVals, w)))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return apperrors.Statisticalf("bootstrap cancelled: %v", err)
				}
				diffs[i] = resampleUplift(rng, controlVals, testVals)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	sort.Float64s(diffs)
	return percentile(diffs, 2.5), percentile(diffs, 97.5), nil
}

func resampleUplift(rng *rand.Rand, controlVals, testVals []float64) float64 {
	controlMean := resampleMean(rng, controlVals)
	testMean := resampleMean(rng, testVals)
	if controlMean == 0 {
		return testMean - controlMean
	}
	return (testMean - controlMean) / controlMean * 100
}

func resampleMean(rng *rand.Rand, vals []float64) float64 {
	sum := 0.0
	for i := 0; i < len(vals); i++ {
		sum += vals[rng.Intn(len(vals))]
	}
	return sum / float64(len(vals))
}

// bootstrapSeed derives a stable seed from the arm contents and worker
// index so repeated runs on the same upload agree
func bootstrapSeed(controlVals, testVals []float64, worker int) int64 {
	h := int64(1469598103934665603)
	mix := func(f float64) {
		h ^= int64(f * 1e6)
		h *= 1099511628211
	}
	for _, v := range controlVals {
		mix(v)
	}
	for _, v := range testVals {
		mix(v)
	}
	return h + int64(worker)
}

// percentile uses linear interpolation between closest ranks over a
// sorted slice
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
