package seed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

const problemYAML = `
parameters:
  maxGenerations: 30
  selection: tournament
  seed: 11
operators:
  - id: OP001
    fullName: 王伟
    skills: [painting, electrical]
    level: senior
    shift: morning
    hoursPerDay: 8
orders:
  - id: SO001
    requiredSkills: [painting]
    estimatedHours: 4
    priority: urgent
    expectedStartDay: 2
  - id: SO002
    estimatedHours: 1
    priority: low
    expectedStartDay: 1
`

func TestReadProblemYAML(t *testing.T) {
	defaults := domain.AllocationRunParameters{PopulationSize: 50, MaxGenerations: 100, EliteCount: 5, HorizonDays: 5, Selection: "truncation"}

	problem, err := ReadProblemYAML(strings.NewReader(problemYAML), defaults)
	require.NoError(t, err)

	assert.Equal(t, int32(50), problem.Parameters.PopulationSize)
	assert.Equal(t, int32(30), problem.Parameters.MaxGenerations)
	assert.Equal(t, "tournament", problem.Parameters.Selection)
	assert.Equal(t, uint64(11), problem.Parameters.Seed)

	require.Len(t, problem.Operators, 1)
	assert.Equal(t, []domain.Skill{domain.SkillPainting, domain.SkillElectrical}, problem.Operators[0].Skills)
	require.Len(t, problem.Orders, 2)
	assert.Equal(t, domain.PriorityUrgent, problem.Orders[0].Priority)
	assert.Equal(t, []domain.Skill{}, problem.Orders[1].RequiredSkills)
}

func TestReadProblemYAMLErrors(t *testing.T) {
	cases := map[string]string{
		"unknown field": "operators: []\ncolour: red\n",
		"bad operator":  "operators:\n  - id: OP001\n    skills: [painting]\n    level: master\n    hoursPerDay: 8\n",
		"bad order":     "orders:\n  - id: SO001\n    estimatedHours: 0\n    priority: low\n    expectedStartDay: 1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadProblemYAML(strings.NewReader(data), domain.AllocationRunParameters{})
			assert.Error(t, err)
		})
	}
}
