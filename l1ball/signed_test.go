// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package l1ball

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectSigned(t *testing.T) {

	p, err := ProjectSigned([]float64{-4, 0, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, 0, 0}, p)

	p, err = ProjectSigned([]float64{-0.5, 0.25}, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.5, 0.25}, p)

	p, err = ProjectSigned([]float64{-3, 3, -3}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 1, -1}, p)

	_, err = ProjectSigned([]float64{1}, -1)
	assert.ErrorIs(t, err, ErrInvalidRadius)

	// shrunk negative entries are +0
	p, err = ProjectSigned([]float64{-3, 2, -1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0, 0}, p)
	for i, v := range p[1:] {
		assert.False(t, math.Signbit(v), "p[%d] is -0", i+1)
	}

	// in place
	proj := mustProjector(t, 1, NewSource(7))
	x := []float64{-3, 2, -1}
	sum, err := proj.ProjectSigned(x, x, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0, 0}, x)
	assert.Equal(t, 2.0, sum.Tau)
	assert.False(t, math.Signbit(x[2]))
}

func TestProjectSignedInPlace(t *testing.T) {
	r := rand.New(rand.NewPCG(97, 101))
	proj := mustProjector(t, 1.5, NewSource(103))
	w := proj.Init()
	for trial := 0; trial < 200; trial++ {
		c := randomVector(r, 1+r.IntN(100), -2, 2)
		want := make([]float64, len(c))
		_, err := proj.ProjectSigned(c, want, w)
		require.NoError(t, err)

		_, err = proj.ProjectSigned(c, c, w)
		require.NoError(t, err)
		if diff := cmp.Diff(want, c, approx); diff != "" {
			t.Fatalf("in-place result differs (-want +got):\n%s", diff)
		}
	}
}

func TestProjectSignedProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(79, 83))
	proj := mustProjector(t, 2, NewSource(89))
	w := proj.Init()
	for trial := 0; trial < 300; trial++ {
		n := 1 + r.IntN(150)
		c := randomVector(r, n, -3, 3)
		out := make([]float64, n)
		sum, err := proj.ProjectSigned(c, out, w)
		require.NoError(t, err)

		norm := 0.0
		for i, x := range out {
			if x != 0 && math.Signbit(x) != math.Signbit(c[i]) {
				t.Fatalf("sign flipped at %d: %v -> %v", i, c[i], x)
			}
			if math.Abs(x) > math.Abs(c[i]) {
				t.Fatalf("magnitude grew at %d: %v -> %v", i, c[i], x)
			}
			norm += math.Abs(x)
		}

		if sum.Inside {
			require.Equal(t, c, out)
			continue
		}
		require.InDelta(t, 2, norm, 1e-9)

		// negating the input negates the output
		neg := make([]float64, n)
		for i := range c {
			neg[i] = -c[i]
		}
		negOut := make([]float64, n)
		_, err = proj.ProjectSigned(neg, negOut, w)
		require.NoError(t, err)
		for i := range negOut {
			negOut[i] = -negOut[i]
		}
		if diff := cmp.Diff(out, negOut, approx); diff != "" {
			t.Fatalf("projection not odd (-want +got):\n%s", diff)
		}
	}
}
