package allocator

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testParameters() *Parameters {
	parameters := DefaultParameters()
	parameters.PopulationSize = 20
	parameters.MaxGenerations = 30
	parameters.EliteCount = 3
	parameters.ReinitInterval = 5
	parameters.Seed = 42
	return parameters
}

func TestRunRecordsOneChampionPerGeneration(t *testing.T) {
	operators, orders := randomTables(100, 6, 30, 5)
	parameters := testParameters()

	var hooked []domain.GenerationChampion
	engine, err := NewEngine(parameters, operators, orders,
		WithLogger(discardLogger),
		WithGenerationHook(func(champion domain.GenerationChampion) {
			hooked = append(hooked, champion)
		}),
	)
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	champions := result.Champions(true)
	require.Len(t, champions, int(parameters.MaxGenerations))
	require.Len(t, hooked, len(champions))

	for g, champion := range champions {
		assert.Equal(t, g, champion.Generation)
		assert.Equal(t, champion.Fitness, hooked[g].Fitness)
		require.NotNil(t, champion.Plan)
		assert.Len(t, champion.Plan.Allocations, len(orders))
	}
}

func TestRunChampionsNeverGetWorse(t *testing.T) {
	for _, selection := range []SelectionStrategy{SelectionTruncation, SelectionTournament} {
		t.Run(string(selection), func(t *testing.T) {
			operators, orders := randomTables(101, 5, 25, 4)
			parameters := testParameters()
			parameters.HorizonDays = 4
			parameters.Selection = selection

			engine, err := NewEngine(parameters, operators, orders, WithLogger(discardLogger))
			require.NoError(t, err)

			result, err := engine.Run(context.Background())
			require.NoError(t, err)

			champions := result.Champions(false)
			best := champions[0].Fitness
			bestGeneration := 0
			for g := 1; g < len(champions); g++ {
				// 精英会被原样保留，因此每一代的冠军都不会比上一代差
				assert.GreaterOrEqual(t, champions[g].Fitness, champions[g-1].Fitness)
				if champions[g].Fitness > best {
					best = champions[g].Fitness
					bestGeneration = g
				}
			}

			assert.Equal(t, best, result.Best().Fitness())
			assert.Equal(t, bestGeneration, result.BestGeneration())
			assert.Equal(t, best, result.Plan().Fitness)
			requireWellFormed(t, engine.Problem(), result.Best())
		})
	}
}

func TestRunIsDeterministicAcrossParallelism(t *testing.T) {
	operators, orders := randomTables(102, 6, 30, 5)

	run := func(parallelism int32) []domain.GenerationChampion {
		parameters := testParameters()
		parameters.Parallelism = parallelism

		engine, err := NewEngine(parameters, operators, orders, WithLogger(discardLogger))
		require.NoError(t, err)

		result, err := engine.Run(context.Background())
		require.NoError(t, err)
		return result.Champions(true)
	}

	sequential := run(1)
	assert.Equal(t, sequential, run(4))
	assert.Equal(t, sequential, run(16))
}

func TestRunWithGreedySeed(t *testing.T) {
	operators, orders := randomTables(103, 4, 20, 5)
	parameters := testParameters()

	greedy, err := Greedy(operators, orders, int(parameters.HorizonDays))
	require.NoError(t, err)

	engine, err := NewEngine(parameters, operators, orders, WithLogger(discardLogger), WithSeedPlans(greedy))
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Best().Fitness(), greedy.Fitness)
}

func TestRunStopsWhenStagnant(t *testing.T) {
	operators := []domain.Operator{
		{ID: "A", Skills: []domain.Skill{domain.SkillPainting}, HoursPerDay: 8},
	}
	orders := []domain.ServiceOrder{paintingOrder("O1", 2, domain.PriorityHigh, 1)}

	parameters := testParameters()
	parameters.PopulationSize = 4
	parameters.EliteCount = 1
	parameters.HorizonDays = 1
	parameters.StagnationLimit = 3

	engine, err := NewEngine(parameters, operators, orders, WithLogger(discardLogger))
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	// 只有一种分配方式，适应度从第 0 代起就不会再变
	assert.Equal(t, 4, result.Generations())
	assert.Equal(t, 0, result.BestGeneration())
	assert.Equal(t, 30.0, result.Best().Fitness())
}

func TestRunHonorsCanceledContext(t *testing.T) {
	operators, orders := randomTables(104, 3, 10, 5)

	engine, err := NewEngine(testParameters(), operators, orders, WithLogger(discardLogger))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = engine.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngineRejectsInvalidInput(t *testing.T) {
	operators, orders := randomTables(105, 3, 10, 5)

	t.Run("参数无效", func(t *testing.T) {
		parameters := testParameters()
		parameters.EliteCount = parameters.PopulationSize

		_, err := NewEngine(parameters, operators, orders)
		assert.ErrorIs(t, err, ErrInvalidParameters)
	})

	t.Run("初始方案过多", func(t *testing.T) {
		parameters := testParameters()
		parameters.PopulationSize = 2
		parameters.EliteCount = 1

		plans := []domain.AllocationPlan{{}, {}, {}}
		_, err := NewEngine(parameters, operators, orders, WithSeedPlans(plans...))
		assert.ErrorIs(t, err, ErrInvalidParameters)
	})

	t.Run("初始方案引用了不存在的工单", func(t *testing.T) {
		plan := domain.AllocationPlan{Allocations: []domain.Allocation{{OrderID: "missing"}}}
		_, err := NewEngine(testParameters(), operators, orders, WithSeedPlans(plan))
		assert.ErrorIs(t, err, ErrInvalidPlan)
	})
}

func TestMutationRateSchedule(t *testing.T) {
	parameters := testParameters()
	parameters.MaxGenerations = 10
	parameters.MutationRate = 0.3
	parameters.MinMutationRate = 0.05

	engine := &Engine{parameters: parameters}
	assert.Equal(t, 0.3, engine.mutationRate(7))

	parameters.MutationDecay = 0.5
	assert.InDelta(t, 0.3, engine.mutationRate(0), 1e-9)
	assert.InDelta(t, 0.2, engine.mutationRate(2), 1e-9)
	assert.InDelta(t, 0.05, engine.mutationRate(8), 1e-9)
}

func TestRunWithoutSeedIsStillValid(t *testing.T) {
	operators, orders := randomTables(106, 4, 12, 5)
	parameters := testParameters()
	parameters.Seed = 0

	engine, err := NewEngine(parameters, operators, orders, WithLogger(discardLogger))
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	requireWellFormed(t, engine.Problem(), result.Best())
}

func TestReinitKeepsElites(t *testing.T) {
	operators, orders := randomTables(102, 6, 30, 5)
	parameters := testParameters()
	parameters.PopulationSize = 10
	parameters.EliteCount = 5

	engine, err := NewEngine(parameters, operators, orders, WithLogger(discardLogger))
	require.NoError(t, err)

	rng := newRNG(7)
	pop := make([]*Chromosome, parameters.PopulationSize)
	for i := range pop {
		pop[i] = engine.problem.CreateInitial(rng)
	}

	for gen := 0; gen < 50; gen++ {
		sortByFitness(pop)
		elites := append([]*Chromosome(nil), pop[:parameters.EliteCount]...)

		next, err := engine.breed(context.Background(), pop, parameters.MutationRate)
		require.NoError(t, err)
		before := make(map[*Chromosome]bool, len(next))
		for _, ch := range next {
			before[ch] = true
		}

		engine.reinit(next)

		present := make(map[*Chromosome]bool, len(next))
		replaced := 0
		for _, ch := range next {
			present[ch] = true
			if !before[ch] {
				replaced++
			}
		}
		for _, elite := range elites {
			require.True(t, present[elite], "第 %d 代的精英在重新生成后丢失", gen)
		}
		require.Equal(t, elites, next[:parameters.EliteCount])
		// min(P/2, P-E) = 5
		require.Equal(t, 5, replaced)

		pop = next
	}
}
