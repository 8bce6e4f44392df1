// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package l1ball

// searchThreshold finds τ with ∑ 𝚖𝚊𝚡(vᵢ - τ, 0) = λ over the positive
// candidates v (∑ vᵢ > λ), reordering v in place.
//
// Let v₁ ≥ v₂ ≥ … ≥ vₙ be v sorted in descending order and vₙ₊₁ = 0.
// The threshold is τ = vₖ - (λ - Lₖ)/k for the rank k satisfying
//
//	Lₖ ≤ λ < Rₖ  where  Lₖ = ∑ⱼ₌₁ᵏ vⱼ - k·vₖ  and  Rₖ = ∑ⱼ₌₁ᵏ vⱼ - k·vₖ₊₁
//
// Instead of sorting, the bracket v[mink:maxk+1] holds the ranks still in
// question: every value left of it is larger than every value inside (their
// sum is offset) and every value right of it is smaller. Each pass partitions
// the bracket around a median-of-three random pivot and keeps the side that
// contains k, so the expected total work is O(n).
func searchThreshold(v []float64, lambda float64, src Source) (tau float64, iter int) {

	n := len(v)
	mink, maxk := 0, n-1

	offset := zero   // ∑ of values ranked before mink
	boundary := zero // the value ranked right after maxk (once maxk < n-1)

	for mink <= maxk {
		iter++

		pk := median3(
			v[pickIndex(src, mink, maxk)],
			v[pickIndex(src, mink, maxk)],
			v[pickIndex(src, mink, maxk)])

		// v[mink:maxk+1] becomes [ > pk | = pk | < pk ]
		lowerLen, middleLen := partition3(v[mink:maxk+1], pk)
		upperLen := maxk - mink + 1 - lowerLen - middleLen

		// rank of the last tie of pk (1-based)
		k := mink + lowerLen + middleLen

		// s1 = ∑ⱼ₌₁ᵏ⁻¹ vⱼ
		s1 := offset + pk*float64(middleLen-1)
		for _, x := range v[mink : mink+lowerLen] {
			s1 += x
		}
		lhs := s1 - float64(k-1)*pk

		// vₖ₊₁ is the largest value ranked after the tie block
		next := zero
		if k < n {
			if upperLen == 0 {
				next = boundary
			} else {
				for _, x := range v[k : maxk+1] {
					if x > next {
						next = x
					}
				}
			}
		}

		s2 := s1 + pk // ∑ⱼ₌₁ᵏ vⱼ
		rhs := s2 - float64(k)*next

		if lambda >= lhs && (lambda < rhs || upperLen == 0) {
			return pk - (lambda-lhs)/float64(k), iter
		}

		if lambda < lhs {
			// Lₖ is non-decreasing in k and Lₖ = Rₖ₋₁ ≤ λ when nothing
			// exceeds pk inside the bracket, so an empty greater block
			// only shows up through rounding: accept this rank.
			if lowerLen == 0 {
				return pk - (lambda-lhs)/float64(k), iter
			}
			maxk = mink + lowerLen - 1
			boundary = pk
		} else {
			mink = k
			offset = s2
		}
	}

	panic("threshold search bracket exhausted")
}

// pickIndex draws a uniform index in [mink, maxk].
func pickIndex(src Source, mink, maxk int) int {
	span := maxk - mink + 1
	i := int(src.Float64() * float64(span))
	return mink + max(0, min(i, span-1))
}

// median3 returns the median of three values.
func median3(a, b, c float64) float64 {
	switch {
	case a >= b && a <= c, a >= c && a <= b:
		return a
	case b >= a && b <= c, b >= c && b <= a:
		return b
	}
	return c
}

// partition3 reorders s into values greater than, equal to and less than
// pivot, returning the length of the first two groups.
func partition3(s []float64, pivot float64) (greater, equal int) {
	lt, i, gt := 0, 0, len(s)
	for i < gt {
		switch x := s[i]; {
		case x > pivot:
			s[lt], s[i] = x, s[lt]
			lt++
			i++
		case x < pivot:
			gt--
			s[i], s[gt] = s[gt], x
		default:
			i++
		}
	}
	return lt, gt - lt
}
