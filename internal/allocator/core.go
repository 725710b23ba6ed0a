package allocator

import (
	"math/rand/v2"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

const (
	skillScore      = 10.0 // 技能得分基数
	latenessPenalty = 5.0  // 每延迟一天的惩罚基数
	overtimePenalty = 5.0  // 每超出一小时的惩罚
)

// randomFeasibleGene 为第 i 个工单随机选择一天和一个满足技能要求的操作员
// 如果没有任何操作员满足要求，则该工单保持未分配
func (p *Problem) randomFeasibleGene(i int, rng *rand.Rand) Gene {
	candidates := p.feasible[i]
	if len(candidates) == 0 {
		return unassignedGene
	}

	day := rng.IntN(p.horizonDays) + 1
	operator := candidates[rng.IntN(len(candidates))]
	return Gene{day: day, operator: operator}
}

// CreateInitial 随机初始化一个染色体
// 这里不检查操作员的工时上限，超时只通过适应度惩罚，让搜索可以经过不可行但有潜力的区域
func (p *Problem) CreateInitial(rng *rand.Rand) *Chromosome {
	genes := make([]Gene, len(p.orders))
	for i := range p.orders {
		genes[i] = p.randomFeasibleGene(i, rng)
	}

	ch := &Chromosome{genes: genes}
	p.Evaluate(ch)
	return ch
}

/**
 * 计算染色体的适应度（越大越好）
 * fitness = Σ skillTerm * priority - Σ latenessPenalty - Σ overtimePenalty
 * 其中:
 * 		1. skillTerm 为技能得分：满足最低技能要求时为 10 * 覆盖率（flat 模式下固定为 10），否则为 -10
 * 		2. priority 为工单优先级序数（1~4）
 * 		3. latenessPenalty = 5 * 延迟天数 * priority
 * 		4. overtimePenalty = 5 * 每个 (操作员, 天) 超出每日工时的小时数
 * 未分配的工单既不得分也不扣分
 */
func (p *Problem) Evaluate(ch *Chromosome) float64 {
	// 每个 (操作员, 天) 的累计工时
	hours := make([]int, len(p.operators)*p.horizonDays)

	fitness := 0.0
	for i, gene := range ch.genes {
		if !gene.assigned() {
			continue
		}

		order := &p.orders[i]
		hours[gene.operator*p.horizonDays+gene.day-1] += order.EstimatedHours

		fit := p.fits[i][gene.operator]
		skillTerm := -skillScore
		if fit.meets {
			switch p.variant {
			case FitnessFlat:
				skillTerm = skillScore
			default:
				skillTerm = skillScore * fit.fraction
			}
		}

		multiplier := float64(domain.PriorityRank(order.Priority))
		fitness += skillTerm * multiplier

		if daysLate := gene.day - order.ExpectedStartDay; daysLate > 0 {
			fitness -= latenessPenalty * float64(daysLate) * multiplier
		}
	}

	// 计算超时惩罚
	for j, operator := range p.operators {
		for d := 0; d < p.horizonDays; d++ {
			if excess := hours[j*p.horizonDays+d] - operator.HoursPerDay; excess > 0 {
				fitness -= overtimePenalty * float64(excess)
			}
		}
	}

	ch.fitness = fitness
	return fitness
}

// Crossover 单点交叉
// 分割点之前的基因来自 a，之后的基因来自 b，不满足技能要求的基因会被丢弃并重新随机生成
func (p *Problem) Crossover(a *Chromosome, b *Chromosome, rng *rand.Rand) *Chromosome {
	length := len(p.orders)

	point := 0
	if length >= 2 {
		point = rng.IntN(length-1) + 1
	}

	genes := make([]Gene, length)
	for i := range genes {
		parent := b
		if i < point {
			parent = a
		}

		gene := parent.genes[i]
		if gene.assigned() && p.fits[i][gene.operator].meets {
			genes[i] = gene
			continue
		}

		// 父本中的分配不可用，重新随机选择满足要求的操作员
		genes[i] = p.randomFeasibleGene(i, rng)
	}

	child := &Chromosome{genes: genes}
	p.Evaluate(child)
	return child
}

// Mutate 变异
// 每个工单以 rate 的概率尝试新的日期和操作员，只有不使适应度变差的改动才会被保留
// 传入的染色体不会被修改
func (p *Problem) Mutate(ch *Chromosome, rate float64, rng *rand.Rand) *Chromosome {
	if len(p.operators) == 0 {
		return ch
	}

	current := ch
	for i := range p.orders {
		if rng.Float64() >= rate {
			continue
		}

		day := rng.IntN(p.horizonDays) + 1
		operator := rng.IntN(len(p.operators))

		// 不满足技能要求的候选直接放弃
		if !p.fits[i][operator].meets {
			continue
		}

		candidate := current.with(i, Gene{day: day, operator: operator})
		if p.Evaluate(candidate) >= current.fitness {
			current = candidate
		}
	}

	return current
}

// 截断选择：从排好序的种群的前 eliteCount 个个体中等概率选择
func selectByTruncation(pop []*Chromosome, eliteCount int, rng *rand.Rand) *Chromosome {
	return pop[rng.IntN(eliteCount)]
}

// 锦标赛选择：有放回地随机抽取 size 个个体，返回其中适应度最高者
func selectByTournament(pop []*Chromosome, size int, rng *rand.Rand) *Chromosome {
	winner := pop[rng.IntN(len(pop))]
	for k := 1; k < size; k++ {
		challenger := pop[rng.IntN(len(pop))]
		if challenger.fitness > winner.fitness {
			winner = challenger
		}
	}
	return winner
}
