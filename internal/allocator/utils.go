package allocator

import (
	"cmp"
	"slices"
)

// sortByFitness 按适应度从高到低排序，适应度相同的个体保持原有顺序
func sortByFitness(pop []*Chromosome) {
	slices.SortStableFunc(pop, func(a, b *Chromosome) int {
		return cmp.Compare(b.fitness, a.fitness)
	})
}
