// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package l1ball

import (
	"fmt"
	"math"
)

const zero = 0.0

// Ball specifies the L1 ball { x : ∑ 𝚖𝚊𝚡(xᵢ,0) ≤ Radius }.
type Ball struct {
	Radius float64 // The radius λ (λ > 0)
	Rand   Source  // Optional pivot sampler, nil uses the global math/rand/v2 generator
}

// New validates the ball and creates a projector for it.
func (b *Ball) New() (*Projector, error) {
	if err := checkRadius(b.Radius); err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	src := b.Rand
	if src == nil {
		src = globalSource{}
	}
	return &Projector{radius: b.Radius, src: src}, nil
}

// Projector projects vectors onto a fixed L1 ball.
// A projector may be shared by goroutines as long as each one uses its own
// Workspace and the Source given to Ball is safe for concurrent use.
type Projector struct {
	radius float64
	src    Source
}

// Radius returns the radius λ of the ball.
func (p *Projector) Radius() float64 {
	return p.radius
}

// Workspace holds the scratch buffers of one projection at a time.
// It grows to the largest input seen and is reused across calls.
type Workspace struct {
	buf []float64 // positive candidates, reordered by the search
	abs []float64 // magnitudes for ProjectSigned
	neg []bool    // input signs for ProjectSigned
}

// Summary describes a finished projection.
type Summary struct {
	Tau     float64 // Soft threshold τ, zero when Inside.
	Inside  bool    // Whether the input already lies in the ball (identity).
	Active  int     // Number of strictly positive input entries.
	NumIter int     // Number of threshold search iterations.
}

// Init allocates a workspace for the projector.
func (p *Projector) Init() *Workspace {
	return new(Workspace)
}

// Project writes the projection of c onto the ball into out.
// The output is fully overwritten on success and untouched on error.
// c and out may be the same slice for an in-place projection.
// A nil workspace allocates a temporary one.
func (p *Projector) Project(c, out []float64, w *Workspace) (sum Summary, err error) {
	if err = checkVector(c, out); err != nil {
		return sum, fmt.Errorf("Project: %w", err)
	}
	if w == nil {
		w = p.Init()
	}
	return p.project(c, out, w), nil
}

// project runs extraction, search and soft-threshold on validated input.
func (p *Projector) project(c, out []float64, w *Workspace) (sum Summary) {
	cand, total := extract(c, w)
	sum.Active = len(cand)
	if total <= p.radius {
		copy(out, c)
		sum.Inside = true
		return
	}
	sum.Tau, sum.NumIter = searchThreshold(cand, p.radius, p.src)
	softThreshold(c, out, sum.Tau)
	return
}

// Project returns the projection of c onto the L1 ball of radius lambda
// using the global random generator for pivot selection.
func Project(c []float64, lambda float64) ([]float64, error) {
	b := Ball{Radius: lambda}
	proj, err := b.New()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(c))
	if _, err = proj.Project(c, out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func checkRadius(r float64) error {
	if !(r > zero) || math.IsInf(r, 1) {
		return fmt.Errorf("radius %v: %w", r, ErrInvalidRadius)
	}
	return nil
}

func checkVector(c, out []float64) error {
	if len(c) != len(out) {
		return fmt.Errorf("len(c)=%d len(p)=%d: %w", len(c), len(out), ErrLengthMismatch)
	}
	for i, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("c[%d]=%v: %w", i, v, ErrNonFinite)
		}
	}
	return nil
}
