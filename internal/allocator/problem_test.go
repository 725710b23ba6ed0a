package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

func TestValidateParameters(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Parameters)
	}{
		{"种群为空", func(p *Parameters) { p.PopulationSize = 0 }},
		{"迭代次数为零", func(p *Parameters) { p.MaxGenerations = 0 }},
		{"没有精英", func(p *Parameters) { p.EliteCount = 0 }},
		{"精英数量等于种群大小", func(p *Parameters) { p.EliteCount = p.PopulationSize }},
		{"规划天数为零", func(p *Parameters) { p.HorizonDays = 0 }},
		{"变异概率大于一", func(p *Parameters) { p.MutationRate = 1.5 }},
		{"变异概率下限为负", func(p *Parameters) { p.MinMutationRate = -0.1 }},
		{"衰减量大于一", func(p *Parameters) { p.MutationDecay = 2 }},
		{"重新生成间隔为负", func(p *Parameters) { p.ReinitInterval = -1 }},
		{"停滞代数为负", func(p *Parameters) { p.StagnationLimit = -1 }},
		{"并行度为负", func(p *Parameters) { p.Parallelism = -1 }},
		{"锦标赛规模过小", func(p *Parameters) {
			p.Selection = SelectionTournament
			p.TournamentSize = 1
		}},
		{"未知的选择策略", func(p *Parameters) { p.Selection = "roulette" }},
		{"未知的适应度计算方式", func(p *Parameters) { p.FitnessVariant = "weighted" }},
	}

	require.NoError(t, DefaultParameters().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parameters := DefaultParameters()
			tt.modify(parameters)
			assert.ErrorIs(t, parameters.Validate(), ErrInvalidParameters)
		})
	}
}

func TestNewProblemRejectsInvalidTables(t *testing.T) {
	order := paintingOrder("O1", 2, domain.PriorityHigh, 1)

	tests := []struct {
		name      string
		operators []domain.Operator
		orders    []domain.ServiceOrder
		horizon   int
		variant   FitnessVariant
	}{
		{"规划天数为零", twoOperators(), []domain.ServiceOrder{order}, 0, FitnessScaled},
		{"未知的适应度计算方式", twoOperators(), []domain.ServiceOrder{order}, 1, "weighted"},
		{"操作员重复", append(twoOperators(), twoOperators()[0]), []domain.ServiceOrder{order}, 1, FitnessScaled},
		{"操作员没有 ID", []domain.Operator{{HoursPerDay: 8}}, []domain.ServiceOrder{order}, 1, FitnessScaled},
		{"操作员工时为零", []domain.Operator{{ID: "A"}}, []domain.ServiceOrder{order}, 1, FitnessScaled},
		{"工单重复", twoOperators(), []domain.ServiceOrder{order, order}, 1, FitnessScaled},
		{"工单工时为零", twoOperators(), []domain.ServiceOrder{paintingOrder("O1", 0, domain.PriorityHigh, 1)}, 1, FitnessScaled},
		{"工单开始日期为零", twoOperators(), []domain.ServiceOrder{paintingOrder("O1", 2, domain.PriorityHigh, 0)}, 1, FitnessScaled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProblem(tt.operators, tt.orders, tt.horizon, tt.variant)
			assert.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}

func TestNewProblemAcceptsEmptyRequiredSkills(t *testing.T) {
	orders := []domain.ServiceOrder{{ID: "O1", EstimatedHours: 1, Priority: domain.PriorityLow, ExpectedStartDay: 1}}
	p, err := NewProblem(twoOperators(), orders, 1, FitnessScaled)
	require.NoError(t, err)

	// 没有技能要求的工单所有操作员都可以承接
	assert.Equal(t, []int{0, 1}, p.feasible[0])
}

func TestPlanRoundTrip(t *testing.T) {
	p := newRandomProblem(t, 200)
	ch := p.CreateInitial(newRNG(201))

	plan := p.ToPlan(ch)
	require.Len(t, plan.Allocations, len(p.Orders()))
	for i, allocation := range plan.Allocations {
		assert.Equal(t, p.Orders()[i].ID, allocation.OrderID)
		if allocation.Assigned() {
			expected := domain.AllocationStatusOnTime
			if allocation.Day > p.Orders()[i].ExpectedStartDay {
				expected = domain.AllocationStatusLate
			}
			assert.Equal(t, expected, allocation.Status)
		}
	}

	restored, err := p.FromPlan(plan)
	require.NoError(t, err)
	assert.Equal(t, ch.genes, restored.genes)
	assert.Equal(t, ch.Fitness(), restored.Fitness())
}

func TestFromPlanTreatsMissingOrdersAsUnassigned(t *testing.T) {
	orders := []domain.ServiceOrder{
		paintingOrder("O1", 2, domain.PriorityHigh, 1),
		paintingOrder("O2", 2, domain.PriorityHigh, 1),
	}
	p, err := NewProblem(twoOperators(), orders, 2, FitnessScaled)
	require.NoError(t, err)

	fitness, err := p.EvaluatePlan(domain.AllocationPlan{
		Allocations: []domain.Allocation{{OrderID: "O2", Day: 2, OperatorID: "A"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 15.0, fitness)
}

func TestFromPlanRejectsInvalidPlans(t *testing.T) {
	orders := []domain.ServiceOrder{paintingOrder("O1", 2, domain.PriorityHigh, 1)}
	p, err := NewProblem(twoOperators(), orders, 2, FitnessScaled)
	require.NoError(t, err)

	tests := []struct {
		name        string
		allocations []domain.Allocation
	}{
		{"工单不存在", []domain.Allocation{{OrderID: "O9", Day: 1, OperatorID: "A"}}},
		{"工单重复", []domain.Allocation{{OrderID: "O1", Day: 1, OperatorID: "A"}, {OrderID: "O1", Day: 2, OperatorID: "A"}}},
		{"操作员不存在", []domain.Allocation{{OrderID: "O1", Day: 1, OperatorID: "Z"}}},
		{"日期超出范围", []domain.Allocation{{OrderID: "O1", Day: 3, OperatorID: "A"}}},
		{"操作员不满足技能要求", []domain.Allocation{{OrderID: "O1", Day: 1, OperatorID: "B"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.FromPlan(domain.AllocationPlan{Allocations: tt.allocations})
			assert.ErrorIs(t, err, ErrInvalidPlan)
		})
	}
}
