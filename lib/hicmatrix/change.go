//
// Copyright (C) 2015-2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

package hicmatrix

// ContactChange buffers (bin, bin, weight) increments before they are
// folded into a dense matrix.
type ContactChange struct {
	Bins1, Bins2 []int
	Weights      []float64
	LastIdx      int
}

func NewContactChange(size int) *ContactChange {
	c := ContactChange{}
	c.LastIdx = -1
	c.Bins1 = make([]int, max(size, 1))
	c.Bins2 = make([]int, max(size, 1))
	c.Weights = make([]float64, max(size, 1))
	return &c
}

// Len returns the number of buffered increments.
func (c *ContactChange) Len() int {
	return c.LastIdx + 1
}

func (c *ContactChange) Write(i, j int, w float64) {
	c.LastIdx++
	if len(c.Bins1) <= c.LastIdx {
		c.Grow(2)
	}
	c.Bins1[c.LastIdx] = i
	c.Bins2[c.LastIdx] = j
	c.Weights[c.LastIdx] = w
}

func (c *ContactChange) Grow(factor int) {
	n := make([]int, len(c.Bins1)*factor)
	copy(n, c.Bins1)
	c.Bins1 = n
	n = make([]int, len(c.Bins2)*factor)
	copy(n, c.Bins2)
	c.Bins2 = n
	m := make([]float64, len(c.Weights)*factor)
	copy(m, c.Weights)
	c.Weights = m
}

// Reset empties the buffer, keeping its capacity.
func (c *ContactChange) Reset() {
	c.LastIdx = -1
}
