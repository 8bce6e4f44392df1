// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package l1ball

// softThreshold writes pᵢ = 𝚖𝚊𝚡(cᵢ - τ, 0) for every entry.
func softThreshold(c, p []float64, tau float64) {
	if len(p) != len(c) {
		panic("bound check error")
	}
	for i, v := range c {
		if v -= tau; v > zero {
			p[i] = v
		} else {
			p[i] = zero
		}
	}
}
