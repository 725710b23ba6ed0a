package allocator

import (
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

var ErrInvalidPlan = errors.New("分配方案无效")

type skillFit struct {
	meets    bool
	fraction float64
}

// Problem 保存一次运行中不可变的操作员表和工单表，可以被多个协程同时读取
type Problem struct {
	operators   []domain.Operator
	orders      []domain.ServiceOrder
	horizonDays int
	variant     FitnessVariant

	operatorIndex map[string]int
	orderIndex    map[string]int
	fits          [][]skillFit // fits[工单下标][操作员下标]
	feasible      [][]int      // 满足最低技能要求的操作员下标
}

func NewProblem(operators []domain.Operator, orders []domain.ServiceOrder, horizonDays int, variant FitnessVariant) (*Problem, error) {
	if horizonDays < 1 {
		return nil, fmt.Errorf("%w: 规划天数必须大于 0，当前为 %d", ErrInvalidParameters, horizonDays)
	}
	switch variant {
	case FitnessScaled, FitnessFlat:
	default:
		return nil, fmt.Errorf("%w: 未知的适应度计算方式 %q", ErrInvalidParameters, variant)
	}

	p := &Problem{
		operators:     operators,
		orders:        orders,
		horizonDays:   horizonDays,
		variant:       variant,
		operatorIndex: make(map[string]int, len(operators)),
		orderIndex:    make(map[string]int, len(orders)),
		fits:          make([][]skillFit, len(orders)),
		feasible:      make([][]int, len(orders)),
	}

	for i, operator := range operators {
		if operator.ID == "" {
			return nil, fmt.Errorf("%w: 第 %d 个操作员没有 ID", ErrInvalidParameters, i+1)
		}
		if _, exists := p.operatorIndex[operator.ID]; exists {
			return nil, fmt.Errorf("%w: 操作员 %s 重复", ErrInvalidParameters, operator.ID)
		}
		if operator.HoursPerDay <= 0 {
			return nil, fmt.Errorf("%w: 操作员 %s 的每日工时必须大于 0", ErrInvalidParameters, operator.ID)
		}
		p.operatorIndex[operator.ID] = i
	}

	for i, order := range orders {
		if order.ID == "" {
			return nil, fmt.Errorf("%w: 第 %d 个工单没有 ID", ErrInvalidParameters, i+1)
		}
		if _, exists := p.orderIndex[order.ID]; exists {
			return nil, fmt.Errorf("%w: 工单 %s 重复", ErrInvalidParameters, order.ID)
		}
		if order.EstimatedHours <= 0 {
			return nil, fmt.Errorf("%w: 工单 %s 的预计工时必须大于 0", ErrInvalidParameters, order.ID)
		}
		if order.ExpectedStartDay < 1 {
			return nil, fmt.Errorf("%w: 工单 %s 的预计开始日期必须从 1 开始", ErrInvalidParameters, order.ID)
		}
		p.orderIndex[order.ID] = i

		// 预先计算每个 (工单, 操作员) 的技能匹配情况
		p.fits[i] = make([]skillFit, len(operators))
		p.feasible[i] = []int{}
		for j, operator := range operators {
			meets, fraction := domain.SkillMatch(operator.Skills, order.RequiredSkills)
			p.fits[i][j] = skillFit{meets: meets, fraction: fraction}
			if meets {
				p.feasible[i] = append(p.feasible[i], j)
			}
		}
	}

	return p, nil
}

func (p *Problem) HorizonDays() int {
	return p.horizonDays
}

func (p *Problem) Operators() []domain.Operator {
	return p.operators
}

func (p *Problem) Orders() []domain.ServiceOrder {
	return p.orders
}

func (p *Problem) status(i int, gene Gene) domain.AllocationStatus {
	if !gene.assigned() {
		return domain.AllocationStatusUnassigned
	}
	if gene.day > p.orders[i].ExpectedStartDay {
		return domain.AllocationStatusLate
	}
	return domain.AllocationStatusOnTime
}

// ToPlan 将染色体转换为对外的分配方案，分配顺序与工单表一致
func (p *Problem) ToPlan(ch *Chromosome) domain.AllocationPlan {
	plan := domain.AllocationPlan{
		Allocations: make([]domain.Allocation, len(p.orders)),
		Fitness:     ch.fitness,
	}

	for i, gene := range ch.genes {
		allocation := domain.Allocation{
			OrderID: p.orders[i].ID,
			Status:  p.status(i, gene),
		}
		if gene.assigned() {
			allocation.Day = gene.day
			allocation.OperatorID = p.operators[gene.operator].ID
		}
		plan.Allocations[i] = allocation
	}

	return plan
}

// FromPlan 将外部的分配方案（例如贪心算法的结果）转换为染色体并计算适应度
// 方案中没有出现的工单视为未分配，状态会根据日期重新计算
func (p *Problem) FromPlan(plan domain.AllocationPlan) (*Chromosome, error) {
	genes := make([]Gene, len(p.orders))
	for i := range genes {
		genes[i] = unassignedGene
	}
	seen := make(map[string]bool, len(plan.Allocations))

	for _, allocation := range plan.Allocations {
		i, exists := p.orderIndex[allocation.OrderID]
		if !exists {
			return nil, fmt.Errorf("%w: 工单 %s 不存在", ErrInvalidPlan, allocation.OrderID)
		}
		if seen[allocation.OrderID] {
			return nil, fmt.Errorf("%w: 工单 %s 被分配了多次", ErrInvalidPlan, allocation.OrderID)
		}
		seen[allocation.OrderID] = true

		if allocation.OperatorID == "" && allocation.Day == 0 {
			continue
		}

		j, exists := p.operatorIndex[allocation.OperatorID]
		if !exists {
			return nil, fmt.Errorf("%w: 工单 %s 的操作员 %s 不存在", ErrInvalidPlan, allocation.OrderID, allocation.OperatorID)
		}
		if allocation.Day < 1 || allocation.Day > p.horizonDays {
			return nil, fmt.Errorf("%w: 工单 %s 的日期 %d 超出规划范围 [1, %d]", ErrInvalidPlan, allocation.OrderID, allocation.Day, p.horizonDays)
		}
		if !p.fits[i][j].meets {
			return nil, fmt.Errorf("%w: 操作员 %s 不满足工单 %s 的最低技能要求", ErrInvalidPlan, allocation.OperatorID, allocation.OrderID)
		}
		genes[i] = Gene{day: allocation.Day, operator: j}
	}

	ch := &Chromosome{genes: genes}
	p.Evaluate(ch)
	return ch, nil
}

// EvaluatePlan 计算外部分配方案的适应度
func (p *Problem) EvaluatePlan(plan domain.AllocationPlan) (float64, error) {
	ch, err := p.FromPlan(plan)
	if err != nil {
		return 0, err
	}
	return ch.fitness, nil
}
