package utils

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

func TestGenerateRandomOperator(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 1; i <= 50; i++ {
		operator := GenerateRandomOperator(rng, i)
		require.NoError(t, ValidateOperator(operator))
		assert.GreaterOrEqual(t, len(operator.Skills), 2)
		assert.LessOrEqual(t, len(operator.Skills), 3)
		assert.GreaterOrEqual(t, operator.HoursPerDay, 7)
		assert.LessOrEqual(t, operator.HoursPerDay, 9)
	}

	assert.Equal(t, "OP007", GenerateRandomOperator(rng, 7).ID)
}

func TestGenerateRandomServiceOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))

	for i := 1; i <= 50; i++ {
		order := GenerateRandomServiceOrder(rng, i, 5)
		require.NoError(t, ValidateServiceOrder(order))
		assert.NotEmpty(t, order.RequiredSkills)
		assert.LessOrEqual(t, len(order.RequiredSkills), 2)
		assert.GreaterOrEqual(t, order.EstimatedHours, 2)
		assert.LessOrEqual(t, order.EstimatedHours, 8)
		assert.GreaterOrEqual(t, order.ExpectedStartDay, 1)
		assert.LessOrEqual(t, order.ExpectedStartDay, 5)
		assert.NotEmpty(t, order.Description)
	}
}

func TestGenerateRandomIsReproducible(t *testing.T) {
	a := GenerateRandomOperator(rand.New(rand.NewPCG(9, 9)), 1)
	b := GenerateRandomOperator(rand.New(rand.NewPCG(9, 9)), 1)
	assert.Equal(t, a, b)
}

func TestGenerateUsernameFromChineseName(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))

	username := GenerateUsernameFromChineseName(rng, "张伟")
	assert.Regexp(t, `^z[a-z]*w[a-z]*[0-9]{1,3}$`, username)
}

func TestGenerateRandomPassword(t *testing.T) {
	assert.Len(t, []rune(GenerateRandomPassword(12)), 12)
	assert.NotEqual(t, GenerateRandomPassword(32), GenerateRandomPassword(32))
}

func TestValidateOperator(t *testing.T) {
	valid := func() *domain.Operator {
		return &domain.Operator{
			ID:          "OP001",
			Skills:      []domain.Skill{domain.SkillPainting},
			Level:       domain.SkillLevelMid,
			HoursPerDay: 8,
		}
	}
	require.NoError(t, ValidateOperator(valid()))

	cases := map[string]func(*domain.Operator){
		"no id":           func(o *domain.Operator) { o.ID = "" },
		"no skills":       func(o *domain.Operator) { o.Skills = nil },
		"unknown skill":   func(o *domain.Operator) { o.Skills = []domain.Skill{"carpentry"} },
		"duplicate skill": func(o *domain.Operator) { o.Skills = []domain.Skill{domain.SkillPainting, domain.SkillPainting} },
		"unknown level":   func(o *domain.Operator) { o.Level = "master" },
		"unknown shift":   func(o *domain.Operator) { o.Shift = "evening" },
		"zero hours":      func(o *domain.Operator) { o.HoursPerDay = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			operator := valid()
			mutate(operator)
			assert.Error(t, ValidateOperator(operator))
		})
	}
}

func TestValidateServiceOrder(t *testing.T) {
	order := &domain.ServiceOrder{
		ID:               "SO001",
		EstimatedHours:   3,
		Priority:         domain.PriorityUrgent,
		ExpectedStartDay: 1,
	}
	// 没有技能要求的工单任何人都可以承接
	require.NoError(t, ValidateServiceOrder(order))

	order.Priority = "critical"
	assert.Error(t, ValidateServiceOrder(order))

	order.Priority = domain.PriorityLow
	order.ExpectedStartDay = 0
	assert.Error(t, ValidateServiceOrder(order))
}
