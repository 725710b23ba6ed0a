package allocator

import (
	"errors"
	"fmt"
)

// Gene: 表示对某个工单的分配决策
type Gene struct {
	day      int // 为 0 表示没有安排日期
	operator int // 操作员下标，为 -1 表示没有分配操作员
}

var unassignedGene = Gene{day: 0, operator: -1}

func (g Gene) assigned() bool {
	return g.operator >= 0
}

// Chromosome: 整个分配方案，genes[i] 对应第 i 个工单
// 染色体一经创建便不再修改，变异和交叉都会返回新的染色体
type Chromosome struct {
	genes   []Gene
	fitness float64
}

func (ch *Chromosome) Fitness() float64 {
	return ch.fitness
}

// with 返回替换了第 i 个基因的副本，副本的适应度需要重新计算
func (ch *Chromosome) with(i int, gene Gene) *Chromosome {
	genes := make([]Gene, len(ch.genes))
	copy(genes, ch.genes)
	genes[i] = gene
	return &Chromosome{genes: genes}
}

type SelectionStrategy string

const (
	// SelectionTruncation 从精英中等概率有放回地抽取父本
	SelectionTruncation SelectionStrategy = "truncation"
	// SelectionTournament 随机抽取若干个体，取其中最优者
	SelectionTournament SelectionStrategy = "tournament"
)

type FitnessVariant string

const (
	// FitnessScaled 满足最低技能要求时按覆盖率计分
	FitnessScaled FitnessVariant = "scaled"
	// FitnessFlat 满足最低技能要求时固定计分
	FitnessFlat FitnessVariant = "flat"
)

var ErrInvalidParameters = errors.New("遗传算法参数无效")

// 遗传算法参数
type Parameters struct {
	PopulationSize  int32             // 种群大小
	MaxGenerations  int32             // 最大迭代次数
	MutationRate    float64           // 变异概率
	MinMutationRate float64           // 变异概率衰减的下限
	MutationDecay   float64           // 变异概率在整个运行中线性衰减的总量，为 0 时不衰减
	EliteCount      int32             // 精英数量
	ReinitInterval  int32             // 每隔多少代重新生成最差的一半种群，为 0 时不重新生成
	HorizonDays     int32             // 规划天数
	Selection       SelectionStrategy // 父本选择策略
	TournamentSize  int32             // 锦标赛规模
	FitnessVariant  FitnessVariant    // 适应度计算方式
	StagnationLimit int32             // 连续多少代没有改进时提前停止，为 0 时不提前停止
	Parallelism     int32             // 并行产生子代的协程数量
	Seed            uint64            // 随机数种子，为 0 时随机选取
}

func DefaultParameters() *Parameters {
	return &Parameters{
		PopulationSize:  50,
		MaxGenerations:  100,
		MutationRate:    0.3,
		MinMutationRate: 0.05,
		MutationDecay:   0,
		EliteCount:      5,
		ReinitInterval:  10,
		HorizonDays:     5,
		Selection:       SelectionTruncation,
		TournamentSize:  5,
		FitnessVariant:  FitnessScaled,
		StagnationLimit: 0,
		Parallelism:     1,
	}
}

// Validate 检查参数是否合法，不合法的参数不会被自动修正
func (p *Parameters) Validate() error {
	if p.PopulationSize < 1 {
		return fmt.Errorf("%w: 种群大小必须大于 0，当前为 %d", ErrInvalidParameters, p.PopulationSize)
	}
	if p.MaxGenerations < 1 {
		return fmt.Errorf("%w: 最大迭代次数必须大于 0，当前为 %d", ErrInvalidParameters, p.MaxGenerations)
	}
	if p.EliteCount < 1 {
		return fmt.Errorf("%w: 精英数量必须大于 0，当前为 %d", ErrInvalidParameters, p.EliteCount)
	}
	if p.EliteCount >= p.PopulationSize {
		return fmt.Errorf("%w: 精英数量 (%d) 必须小于种群大小 (%d)", ErrInvalidParameters, p.EliteCount, p.PopulationSize)
	}
	if p.HorizonDays < 1 {
		return fmt.Errorf("%w: 规划天数必须大于 0，当前为 %d", ErrInvalidParameters, p.HorizonDays)
	}
	if p.MutationRate < 0 || p.MutationRate > 1 {
		return fmt.Errorf("%w: 变异概率必须在 [0, 1] 之间，当前为 %v", ErrInvalidParameters, p.MutationRate)
	}
	if p.MinMutationRate < 0 || p.MinMutationRate > 1 {
		return fmt.Errorf("%w: 变异概率下限必须在 [0, 1] 之间，当前为 %v", ErrInvalidParameters, p.MinMutationRate)
	}
	if p.MutationDecay < 0 || p.MutationDecay > 1 {
		return fmt.Errorf("%w: 变异概率衰减量必须在 [0, 1] 之间，当前为 %v", ErrInvalidParameters, p.MutationDecay)
	}
	if p.ReinitInterval < 0 {
		return fmt.Errorf("%w: 重新生成间隔不能为负数，当前为 %d", ErrInvalidParameters, p.ReinitInterval)
	}
	if p.StagnationLimit < 0 {
		return fmt.Errorf("%w: 停滞代数上限不能为负数，当前为 %d", ErrInvalidParameters, p.StagnationLimit)
	}
	if p.Parallelism < 0 {
		return fmt.Errorf("%w: 并行度不能为负数，当前为 %d", ErrInvalidParameters, p.Parallelism)
	}

	switch p.Selection {
	case SelectionTruncation:
	case SelectionTournament:
		if p.TournamentSize < 2 {
			return fmt.Errorf("%w: 锦标赛规模至少为 2，当前为 %d", ErrInvalidParameters, p.TournamentSize)
		}
	default:
		return fmt.Errorf("%w: 未知的选择策略 %q", ErrInvalidParameters, p.Selection)
	}

	switch p.FitnessVariant {
	case FitnessScaled, FitnessFlat:
	default:
		return fmt.Errorf("%w: 未知的适应度计算方式 %q", ErrInvalidParameters, p.FitnessVariant)
	}

	return nil
}
