// Package tilecoder implements tile coding of vectors
package tilecoder

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/samplemv"

	"github.com/samuelfneumann/tdlearner/utils/floatutils"
)

// Controls tiling offsets. For each dimension, tilings are offset by
// randomly sampling from a uniform distribution with support
// [- tiling width/OffsetDiv, tiling width/OffsetDiv]
const OffsetDiv float64 = 1.5

// TileCoder implements functionality for tile coding a vector. Tile
// coding takes a low-dimensional vector and changes it into a large,
// sparse vector consisting of only 0's and 1's. Each 1 represents the
// coordinates of the original vector in some space of tilings. For
// example:
//
//		[0.5, 0.1] -> [0, 0, 0, 1, 0, 0, 1, 0]
//
// The number of nonzero elements in the tile-coded representation equals
// the number of tilings used to encode the vector. Every tiling uses the
// same number of tiles along each dimension, so the total number of
// features is tilings * tilesPerDim^dims. Tile coding requires that the
// space to be tiled be bounded; values outside of the bounds fall into
// the outermost tiles.
//
// A TileCoder is not modified after construction and may be used
// concurrently.
type TileCoder struct {
	numTilings  int
	tilesPerDim int
	minDims     []float64
	binLengths  []float64
	offsets     *mat.Dense // numTilings x dims
}

// New creates and returns a new TileCoder. The minDims and maxDims
// arguments are the bounds on each dimension between which tilings will
// be placed. These arguments should have the same length as vectors
// which will be tile coded. The seed determines the random offsets of
// each tiling.
func New(minDims, maxDims []float64, numTilings, tilesPerDim int,
	seed uint64) (*TileCoder, error) {
	// Error checking
	if len(minDims) == 0 {
		return nil, fmt.Errorf("new: cannot tile code 0-dimensional vectors")
	}
	if len(minDims) != len(maxDims) {
		return nil, fmt.Errorf("new: cannot specify minimum with different "+
			"dimensions than maximum: %d != %d", len(minDims), len(maxDims))
	}
	if numTilings < 1 {
		return nil, fmt.Errorf("new: cannot have less than 1 tiling")
	}
	if tilesPerDim < 1 {
		return nil, fmt.Errorf("new: cannot have less than 1 tile per " +
			"dimension")
	}

	// Calculate the length of bins and the tiling offset bounds
	dims := len(minDims)
	binLengths := make([]float64, dims)
	bounds := make([]r1.Interval, dims)
	for i := 0; i < dims; i++ {
		if maxDims[i] <= minDims[i] {
			return nil, fmt.Errorf("new: dimension %d has empty bounds "+
				"[%v, %v]", i, minDims[i], maxDims[i])
		}
		binLengths[i] = (maxDims[i] - minDims[i]) / float64(tilesPerDim)

		bound := binLengths[i] / OffsetDiv
		bounds[i] = r1.Interval{Min: -bound, Max: bound}
	}

	// Sample one offset per dimension for each tiling
	source := rand.NewSource(seed)
	u := distmv.NewUniform(bounds, source)
	sampler := samplemv.IID{Dist: u}

	offsets := mat.NewDense(numTilings, dims, nil)
	sampler.Sample(offsets)

	min := make([]float64, dims)
	copy(min, minDims)

	return &TileCoder{
		numTilings:  numTilings,
		tilesPerDim: tilesPerDim,
		minDims:     min,
		binLengths:  binLengths,
		offsets:     offsets,
	}, nil
}

// tilesPerTiling returns the number of tiles in a single tiling
func (t *TileCoder) tilesPerTiling() int {
	return int(math.Pow(float64(t.tilesPerDim), float64(len(t.minDims))))
}

// encodeWithTiling returns the index of the tile coded feature vector
// which should be a 1.0 when the input vector v is encoded with tiling
// number tiling in the TileCoder.
func (t *TileCoder) encodeWithTiling(v []float64, tiling int) int {
	index := 0
	for i := 0; i < len(v); i++ {
		// Offset the tiling
		data := v[i] + t.offsets.At(tiling, i)

		// Calculate the index of the tile along the current feature
		// dimension in which the feature falls, clipped to the tiling
		tile := math.Floor((data - t.minDims[i]) / t.binLengths[i])
		tile = floatutils.Clip(tile, 0.0, float64(t.tilesPerDim-1))

		index = index*t.tilesPerDim + int(tile)
	}
	return tiling*t.tilesPerTiling() + index
}

// EncodeIndices returns the indices of the non-zero features of the
// tile coded representation of v, one per tiling
func (t *TileCoder) EncodeIndices(v []float64) ([]int, error) {
	if len(v) != len(t.minDims) {
		return nil, fmt.Errorf("encodeIndices: vector has %d dimensions, "+
			"tilings have %d", len(v), len(t.minDims))
	}

	indices := make([]int, t.numTilings)
	for i := 0; i < t.numTilings; i++ {
		indices[i] = t.encodeWithTiling(v, i)
	}
	return indices, nil
}

// Encode encodes a single vector as a tile-coded vector
func (t *TileCoder) Encode(v []float64) (*mat.VecDense, error) {
	indices, err := t.EncodeIndices(v)
	if err != nil {
		return nil, err
	}

	tileCoded := mat.NewVecDense(t.VecLength(), nil)
	for _, index := range indices {
		tileCoded.SetVec(index, 1.0)
	}
	return tileCoded, nil
}

// String returns a string representation of a *TileCoder
func (t *TileCoder) String() string {
	return fmt.Sprintf("Tilings %d  |  Tiles per dimension: %d  |  Dims: %d",
		t.numTilings, t.tilesPerDim, len(t.minDims))
}

// VecLength returns the number of features in a tile-coded vector
func (t *TileCoder) VecLength() int {
	return t.numTilings * t.tilesPerTiling()
}

// NumTilings returns the number of tilings the tile coder uses for
// encoding vectors
func (t *TileCoder) NumTilings() int {
	return t.numTilings
}

// Dims returns the dimension of vectors the tile coder encodes
func (t *TileCoder) Dims() int {
	return len(t.minDims)
}
