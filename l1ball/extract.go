// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package l1ball

// extract copies the strictly positive entries of c into the workspace and
// returns them with their sum S = ∑ 𝚖𝚊𝚡(cᵢ,0). Order is irrelevant to the search.
func extract(c []float64, w *Workspace) (cand []float64, total float64) {
	if cap(w.buf) < len(c) {
		w.buf = make([]float64, 0, len(c))
	}
	cand = w.buf[:0]
	for _, v := range c {
		if v > zero {
			total += v
			cand = append(cand, v)
		}
	}
	return
}
