package service

import (
	"math/rand/v2"
	"slices"
)

// Sample picks n ids at random with a fixed seed. n <= 0 or n >= len(ids) keeps every id in order.
func Sample(ids []string, n int, seed uint64) []string {
	if n <= 0 || n >= len(ids) {
		return slices.Clone(ids)
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]string, 0, n)
	for _, i := range r.Perm(len(ids))[:n] {
		out = append(out, ids[i])
	}
	return out
}
