// Package dataset produces sample sets for training: seeded synthetic
// clusters and numeric CSV files.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/nvandessel/kuramap/internal/models"
)

// Clusters draws perCluster samples around each center with independent
// N(0, spread²) noise per component. Samples are interleaved across
// clusters (c0, c1, …, c0, c1, …); labels[k] is the center index of
// samples[k].
func Clusters(rng *rand.Rand, centers [][]float64, perCluster int, spread float64) (samples [][]float64, labels []int, err error) {
	if len(centers) == 0 {
		return nil, nil, fmt.Errorf("clusters: no centers")
	}
	if perCluster < 0 {
		return nil, nil, fmt.Errorf("clusters: per-cluster count must be non-negative, got %d", perCluster)
	}
	if err := models.CheckScalar("spread", spread); err != nil || spread < 0 {
		return nil, nil, fmt.Errorf("clusters: spread must be finite and non-negative, got %v", spread)
	}
	dim := len(centers[0])
	for i, c := range centers {
		if len(c) != dim {
			return nil, nil, fmt.Errorf("clusters: center %d: %w", i, &models.DimensionError{Want: dim, Got: len(c)})
		}
		if err := models.CheckFinite("center", c); err != nil {
			return nil, nil, fmt.Errorf("clusters: center %d: %w", i, err)
		}
	}

	samples = make([][]float64, 0, perCluster*len(centers))
	labels = make([]int, 0, perCluster*len(centers))
	for range perCluster {
		for ci, c := range centers {
			x := make([]float64, dim)
			for k := range x {
				x[k] = c[k] + spread*rng.NormFloat64()
			}
			samples = append(samples, x)
			labels = append(labels, ci)
		}
	}
	return samples, labels, nil
}

// TwoClusters returns n two-dimensional samples split between tight
// clusters around (0.2, 0.2) and (0.8, 0.8). Odd n puts the extra sample
// in the first cluster.
func TwoClusters(rng *rand.Rand, n int) [][]float64 {
	return TwoClustersDim(rng, n, 2)
}

// TwoClustersDim is TwoClusters in dim dimensions: the centers repeat 0.2
// and 0.8 in every component. dim ≤ 0 yields no samples.
func TwoClustersDim(rng *rand.Rand, n, dim int) [][]float64 {
	if dim <= 0 || n <= 0 {
		return nil
	}
	lo, hi := make([]float64, dim), make([]float64, dim)
	for k := range dim {
		lo[k], hi[k] = 0.2, 0.8
	}
	samples, _, _ := Clusters(rng, [][]float64{lo, hi}, (n+1)/2, 0.05)
	return samples[:n]
}

// LoadCSV reads one sample per record. A first record that does not parse
// as numbers is treated as a header. Blank lines and lines starting with
// '#' are skipped. When dim ≤ 0 the dimension is taken from the first
// sample; every record must match it.
func LoadCSV(r io.Reader, dim int) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var samples [][]float64
	for record := 0; ; record++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		x, perr := parseRecord(fields)
		if perr != nil {
			if record == 0 {
				continue
			}
			return nil, fmt.Errorf("csv line %d: %w", line, perr)
		}
		if dim <= 0 {
			dim = len(x)
		}
		if len(x) != dim {
			return nil, fmt.Errorf("csv line %d: %w", line, &models.DimensionError{Want: dim, Got: len(x)})
		}
		if err := models.CheckFinite("sample", x); err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		samples = append(samples, x)
	}
	return samples, nil
}

func parseRecord(fields []string) ([]float64, error) {
	x := make([]float64, len(fields))
	for k, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", k+1, err)
		}
		x[k] = v
	}
	return x, nil
}
