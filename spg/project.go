// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spg

import (
	"errors"
	"math"

	"github.com/curioloop/l1proj/l1ball"
)

// Bound represents the bounds for an optimization variable.
// A NaN bound is treated as absent.
type Bound struct {
	Lower, Upper float64
}

// Box returns the projection onto the box lᵢ ≤ xᵢ ≤ uᵢ:
//
//	𝚙𝚛𝚘𝚓 xᵢ = uᵢ    if xᵢ > uᵢ
//	𝚙𝚛𝚘𝚓 xᵢ = lᵢ    if xᵢ < lᵢ
//	𝚙𝚛𝚘𝚓 xᵢ = xᵢ    otherwise
func Box(bounds []Bound) (Projection, error) {
	for _, b := range bounds {
		if b.Lower > b.Upper {
			return nil, errors.New("bound range has no feasible solution")
		}
	}
	return func(x []float64) error {
		if len(x) != len(bounds) {
			return errors.New("bounds size must equal to n")
		}
		for i, b := range bounds {
			if !math.IsNaN(b.Lower) && x[i] < b.Lower {
				x[i] = b.Lower
			} else if !math.IsNaN(b.Upper) && x[i] > b.Upper {
				x[i] = b.Upper
			}
		}
		return nil
	}, nil
}

// L1Ball returns the projection onto { x : ‖ x ‖₁ ≤ λ } of the given projector.
// The returned projection owns a workspace and must not be shared across goroutines.
func L1Ball(proj *l1ball.Projector) Projection {
	w := proj.Init()
	return func(x []float64) error {
		_, err := proj.ProjectSigned(x, x, w)
		return err
	}
}

// Simplex returns the projection onto { x : xᵢ ≥ 0, ∑ xᵢ = radius }.
func Simplex(radius float64) Projection {
	return func(x []float64) error {
		_, err := l1ball.Simplex(x, x, radius)
		return err
	}
}

// GroupLinf returns the projection onto { x : ∑₉ 𝚖𝚊𝚡ᵢ∈₉ |xᵢ| ≤ radius }
// with groups[i] the group label of xᵢ.
func GroupLinf(groups []int, radius float64) Projection {
	return func(x []float64) error {
		return l1ball.GroupLinf(x, x, groups, radius)
	}
}

// GroupLinfCone returns the projection of x = (w, α) onto { |wᵢ| ≤ α₉ },
// where w = x[:len(groups)] and α = x[len(groups):] holds one bound per group.
func GroupLinfCone(groups []int) Projection {
	return func(x []float64) error {
		if len(x) < len(groups) {
			return errors.New("x shorter than groups")
		}
		p := len(groups)
		return l1ball.GroupLinfCone(x[:p:p], x[p:], groups)
	}
}
