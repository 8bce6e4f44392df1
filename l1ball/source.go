// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package l1ball

import "math/rand/v2"

// Source produces uniform samples in [0,1) for pivot selection.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
}

// defaultSeed replaces a zero seed so NewSource(0) is still reproducible.
const defaultSeed uint64 = 0x9e3779b97f4a7c15

// NewSource returns a deterministic PCG stream for seed.
// The returned source is not safe for concurrent use.
func NewSource(seed uint64) Source {
	if seed == 0 {
		seed = defaultSeed
	}
	return rand.New(rand.NewPCG(seed, seed^defaultSeed))
}

// globalSource draws from the process-wide generator of math/rand/v2,
// which is safe for concurrent use.
type globalSource struct{}

func (globalSource) Float64() float64 {
	return rand.Float64()
}
