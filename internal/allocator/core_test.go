package allocator

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

func TestEvaluateScenarios(t *testing.T) {
	tests := []struct {
		name    string
		orders  []domain.ServiceOrder
		horizon int
		genes   []Gene
		want    float64
	}{
		{
			name:    "技能完全匹配且按时",
			orders:  []domain.ServiceOrder{paintingOrder("O1", 2, domain.PriorityHigh, 1)},
			horizon: 1,
			genes:   []Gene{{day: 1, operator: 0}},
			want:    30,
		},
		{
			name:    "技能不匹配",
			orders:  []domain.ServiceOrder{paintingOrder("O1", 2, domain.PriorityHigh, 1)},
			horizon: 1,
			genes:   []Gene{{day: 1, operator: 1}},
			want:    -30,
		},
		{
			name:    "延迟一天",
			orders:  []domain.ServiceOrder{paintingOrder("O1", 2, domain.PriorityHigh, 1)},
			horizon: 2,
			genes:   []Gene{{day: 2, operator: 0}},
			want:    15,
		},
		{
			name: "同一天超出工时",
			orders: []domain.ServiceOrder{
				paintingOrder("O1", 5, domain.PriorityLow, 1),
				paintingOrder("O2", 5, domain.PriorityLow, 1),
			},
			horizon: 1,
			genes:   []Gene{{day: 1, operator: 0}, {day: 1, operator: 0}},
			want:    10 + 10 - 10,
		},
		{
			name:    "未分配的工单不计分",
			orders:  []domain.ServiceOrder{paintingOrder("O1", 2, domain.PriorityUrgent, 1)},
			horizon: 1,
			genes:   []Gene{unassignedGene},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProblem(twoOperators(), tt.orders, tt.horizon, FitnessScaled)
			require.NoError(t, err)

			ch := &Chromosome{genes: tt.genes}
			assert.Equal(t, tt.want, p.Evaluate(ch))
			assert.Equal(t, tt.want, ch.Fitness())
		})
	}
}

func TestEvaluateVariants(t *testing.T) {
	operators := []domain.Operator{
		{ID: "A", Skills: []domain.Skill{domain.SkillPainting}, HoursPerDay: 8},
	}
	orders := []domain.ServiceOrder{{
		ID:               "O1",
		RequiredSkills:   []domain.Skill{domain.SkillPainting, domain.SkillWelding},
		EstimatedHours:   2,
		Priority:         domain.PriorityMedium,
		ExpectedStartDay: 1,
	}}
	genes := []Gene{{day: 1, operator: 0}}

	scaled, err := NewProblem(operators, orders, 1, FitnessScaled)
	require.NoError(t, err)
	flat, err := NewProblem(operators, orders, 1, FitnessFlat)
	require.NoError(t, err)

	// 覆盖率 0.5 刚好满足最低要求
	assert.Equal(t, 10.0, scaled.Evaluate(&Chromosome{genes: genes}))
	assert.Equal(t, 20.0, flat.Evaluate(&Chromosome{genes: genes}))
}

func TestEvaluateIsIdempotent(t *testing.T) {
	p := newRandomProblem(t, 1)
	rng := newRNG(2)

	for range 20 {
		ch := p.CreateInitial(rng)
		genes := slices.Clone(ch.genes)

		first := p.Evaluate(ch)
		second := p.Evaluate(ch)
		assert.Equal(t, first, second)
		assert.Equal(t, genes, ch.genes)
	}
}

func TestCreateInitialIsFeasible(t *testing.T) {
	p := newRandomProblem(t, 3)
	rng := newRNG(4)

	for range 50 {
		ch := p.CreateInitial(rng)
		requireWellFormed(t, p, ch)
		assert.Equal(t, p.Evaluate(&Chromosome{genes: ch.genes}), ch.Fitness())
	}
}

func TestCreateInitialLeavesImpossibleOrdersUnassigned(t *testing.T) {
	orders := []domain.ServiceOrder{{
		ID:               "O1",
		RequiredSkills:   []domain.Skill{domain.SkillMasonry},
		EstimatedHours:   3,
		Priority:         domain.PriorityHigh,
		ExpectedStartDay: 1,
	}}
	p, err := NewProblem(twoOperators(), orders, 3, FitnessScaled)
	require.NoError(t, err)

	ch := p.CreateInitial(newRNG(5))
	assert.False(t, ch.genes[0].assigned())
	assert.Equal(t, 0.0, ch.Fitness())

	plan := p.ToPlan(ch)
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, domain.AllocationStatusUnassigned, plan.Allocations[0].Status)
	assert.Empty(t, plan.Allocations[0].OperatorID)
}

func TestCrossoverIsFeasible(t *testing.T) {
	p := newRandomProblem(t, 6)
	rng := newRNG(7)

	for range 50 {
		a := p.CreateInitial(rng)
		b := p.CreateInitial(rng)
		aGenes, bGenes := slices.Clone(a.genes), slices.Clone(b.genes)

		child := p.Crossover(a, b, rng)
		requireWellFormed(t, p, child)

		// 父本不会被修改
		assert.Equal(t, aGenes, a.genes)
		assert.Equal(t, bGenes, b.genes)
	}
}

func TestCrossoverTakesPrefixAndSuffix(t *testing.T) {
	orders := []domain.ServiceOrder{
		paintingOrder("O1", 1, domain.PriorityLow, 1),
		paintingOrder("O2", 1, domain.PriorityLow, 1),
	}
	p, err := NewProblem(twoOperators(), orders, 3, FitnessScaled)
	require.NoError(t, err)

	a := &Chromosome{genes: []Gene{{day: 1, operator: 0}, {day: 1, operator: 0}}}
	b := &Chromosome{genes: []Gene{{day: 3, operator: 0}, {day: 3, operator: 0}}}

	// 两个工单时分割点只能是 1
	child := p.Crossover(a, b, newRNG(8))
	assert.Equal(t, []Gene{{day: 1, operator: 0}, {day: 3, operator: 0}}, child.genes)
}

func TestCrossoverRepairsInfeasibleGenes(t *testing.T) {
	orders := []domain.ServiceOrder{paintingOrder("O1", 1, domain.PriorityLow, 1)}
	p, err := NewProblem(twoOperators(), orders, 2, FitnessScaled)
	require.NoError(t, err)

	a := &Chromosome{genes: []Gene{{day: 1, operator: 1}}}
	b := &Chromosome{genes: []Gene{unassignedGene}}

	for seed := range uint64(10) {
		child := p.Crossover(a, b, newRNG(seed))
		require.True(t, child.genes[0].assigned())
		assert.Equal(t, 0, child.genes[0].operator)
	}
}

func TestMutateNeverWorsens(t *testing.T) {
	p := newRandomProblem(t, 9)
	rng := newRNG(10)

	for range 50 {
		ch := p.CreateInitial(rng)
		genes := slices.Clone(ch.genes)
		fitness := ch.Fitness()

		mutated := p.Mutate(ch, 0.5, rng)
		requireWellFormed(t, p, mutated)
		assert.GreaterOrEqual(t, mutated.Fitness(), fitness)

		// 原染色体保持不变
		assert.Equal(t, genes, ch.genes)
		assert.Equal(t, fitness, ch.Fitness())
	}
}

func TestMutateWithZeroRateReturnsInput(t *testing.T) {
	p := newRandomProblem(t, 11)
	rng := newRNG(12)

	ch := p.CreateInitial(rng)
	assert.Same(t, ch, p.Mutate(ch, 0, rng))
}

func TestMutateRejectsInfeasibleProposals(t *testing.T) {
	operators := []domain.Operator{
		{ID: "B", Skills: []domain.Skill{domain.SkillElectrical}, HoursPerDay: 8},
	}
	orders := []domain.ServiceOrder{paintingOrder("O1", 2, domain.PriorityHigh, 1)}
	p, err := NewProblem(operators, orders, 5, FitnessScaled)
	require.NoError(t, err)

	ch := p.CreateInitial(newRNG(13))
	require.False(t, ch.genes[0].assigned())

	mutated := p.Mutate(ch, 1, newRNG(14))
	assert.False(t, mutated.genes[0].assigned())
}

func TestSelectByTruncation(t *testing.T) {
	p := newRandomProblem(t, 15)
	rng := newRNG(16)

	pop := make([]*Chromosome, 10)
	for i := range pop {
		pop[i] = p.CreateInitial(rng)
	}
	sortByFitness(pop)

	for range 100 {
		parent := selectByTruncation(pop, 3, rng)
		assert.Contains(t, pop[:3], parent)
	}
}

func TestSelectByTournament(t *testing.T) {
	pop := []*Chromosome{{fitness: 5}, {fitness: 4}, {fitness: 3}, {fitness: 2}}
	rng := newRNG(17)

	// 锦标赛规模足够大时几乎总能选中最优个体，且永远不会选中最差个体
	for range 100 {
		parent := selectByTournament(pop, 16, rng)
		assert.NotSame(t, pop[3], parent)
	}
}

func TestSortByFitness(t *testing.T) {
	a, b, c := &Chromosome{fitness: 1}, &Chromosome{fitness: 3}, &Chromosome{fitness: 1}
	pop := []*Chromosome{a, b, c}

	sortByFitness(pop)
	assert.Same(t, b, pop[0])
	assert.Same(t, a, pop[1])
	assert.Same(t, c, pop[2])
}
