package allocator

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// twoOperators: A 会刷漆，B 只会电工，每天都是 8 小时
func twoOperators() []domain.Operator {
	return []domain.Operator{
		{ID: "A", Skills: []domain.Skill{domain.SkillPainting}, Level: domain.SkillLevelSenior, HoursPerDay: 8},
		{ID: "B", Skills: []domain.Skill{domain.SkillElectrical}, Level: domain.SkillLevelJunior, HoursPerDay: 8},
	}
}

func paintingOrder(id string, hours int, priority domain.Priority, day int) domain.ServiceOrder {
	return domain.ServiceOrder{
		ID:               id,
		RequiredSkills:   []domain.Skill{domain.SkillPainting},
		EstimatedHours:   hours,
		Priority:         priority,
		ExpectedStartDay: day,
	}
}

// randomTables 按照固定种子生成一组随机的操作员和工单
func randomTables(seed uint64, operators, orders, horizon int) ([]domain.Operator, []domain.ServiceOrder) {
	rng := newRNG(seed)

	pickSkills := func(n int) []domain.Skill {
		perm := rng.Perm(len(domain.Skills))
		skills := make([]domain.Skill, n)
		for i := range skills {
			skills[i] = domain.Skills[perm[i]]
		}
		return skills
	}

	ops := make([]domain.Operator, operators)
	for i := range ops {
		ops[i] = domain.Operator{
			ID:          fmt.Sprintf("OP%02d", i+1),
			Skills:      pickSkills(1 + rng.IntN(2)),
			Level:       domain.SkillLevels[rng.IntN(len(domain.SkillLevels))],
			Shift:       domain.Shifts[rng.IntN(len(domain.Shifts))],
			HoursPerDay: 7 + rng.IntN(3),
		}
	}

	ords := make([]domain.ServiceOrder, orders)
	for i := range ords {
		ords[i] = domain.ServiceOrder{
			ID:               fmt.Sprintf("SO%03d", i+1),
			RequiredSkills:   pickSkills(1 + rng.IntN(2)),
			EstimatedHours:   2 + rng.IntN(7),
			Priority:         domain.Priorities[rng.IntN(len(domain.Priorities))],
			ExpectedStartDay: 1 + rng.IntN(horizon),
		}
	}

	return ops, ords
}

func newRandomProblem(t *testing.T, seed uint64) *Problem {
	t.Helper()

	operators, orders := randomTables(seed, 6, 30, 5)
	p, err := NewProblem(operators, orders, 5, FitnessScaled)
	require.NoError(t, err)
	return p
}

// requireWellFormed 检查每个工单恰好有一个基因，且已分配的基因都满足技能要求并在规划范围内
func requireWellFormed(t *testing.T, p *Problem, ch *Chromosome) {
	t.Helper()

	require.Len(t, ch.genes, len(p.orders))
	for i, gene := range ch.genes {
		if !gene.assigned() {
			continue
		}
		require.True(t, p.fits[i][gene.operator].meets, "工单 %s 分配给了不满足技能要求的操作员", p.orders[i].ID)
		require.GreaterOrEqual(t, gene.day, 1)
		require.LessOrEqual(t, gene.day, p.horizonDays)
	}

	plan := p.ToPlan(ch)
	seen := make(map[string]bool, len(plan.Allocations))
	for _, allocation := range plan.Allocations {
		require.False(t, seen[allocation.OrderID], "工单 %s 出现了多次", allocation.OrderID)
		seen[allocation.OrderID] = true
	}
	require.Len(t, seen, len(p.orders))
}
