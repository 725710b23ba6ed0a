package allocator

import (
	"cmp"
	"slices"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

// Greedy 贪心分配
// 工单按优先级从高到低、预计开始日期从早到晚排序，依次分配给第一个满足技能要求且当天还有剩余工时的 (日期, 操作员)
// 找不到这样的组合时工单保持未分配
func (p *Problem) Greedy() domain.AllocationPlan {
	order := make([]int, len(p.orders))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		oa, ob := &p.orders[a], &p.orders[b]
		if c := cmp.Compare(domain.PriorityRank(ob.Priority), domain.PriorityRank(oa.Priority)); c != 0 {
			return c
		}
		return cmp.Compare(oa.ExpectedStartDay, ob.ExpectedStartDay)
	})

	hours := make([]int, len(p.operators)*p.horizonDays)
	genes := make([]Gene, len(p.orders))
	for i := range genes {
		genes[i] = unassignedGene
	}

	for _, i := range order {
		estimated := p.orders[i].EstimatedHours

	search:
		for day := 1; day <= p.horizonDays; day++ {
			// feasible 中的操作员下标是递增的，与操作员表的顺序一致
			for _, j := range p.feasible[i] {
				cell := j*p.horizonDays + day - 1
				if hours[cell]+estimated <= p.operators[j].HoursPerDay {
					hours[cell] += estimated
					genes[i] = Gene{day: day, operator: j}
					break search
				}
			}
		}
	}

	ch := &Chromosome{genes: genes}
	p.Evaluate(ch)
	return p.ToPlan(ch)
}

// Greedy 为给定的操作员表和工单表生成贪心分配方案
func Greedy(operators []domain.Operator, orders []domain.ServiceOrder, horizonDays int) (domain.AllocationPlan, error) {
	p, err := NewProblem(operators, orders, horizonDays, FitnessScaled)
	if err != nil {
		return domain.AllocationPlan{}, err
	}
	return p.Greedy(), nil
}
