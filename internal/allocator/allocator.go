package allocator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

type Engine struct {
	parameters   *Parameters
	problem      *Problem
	seedPlans    []domain.AllocationPlan
	logger       *slog.Logger
	onGeneration func(domain.GenerationChampion)
	rng          *rand.Rand
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSeedPlans 将外部分配方案（例如贪心算法的结果）放入初始种群
func WithSeedPlans(plans ...domain.AllocationPlan) Option {
	return func(e *Engine) {
		e.seedPlans = append(e.seedPlans, plans...)
	}
}

// WithGenerationHook 在每一代记录冠军之后调用，用于对外汇报进度
func WithGenerationHook(fn func(domain.GenerationChampion)) Option {
	return func(e *Engine) {
		e.onGeneration = fn
	}
}

// Result 为一次运行的结果，champions[g] 为第 g 代的冠军
type Result struct {
	problem        *Problem
	best           *Chromosome
	bestGeneration int
	champions      []*Chromosome
	duration       time.Duration
}

func (r *Result) Best() *Chromosome {
	return r.best
}

func (r *Result) BestGeneration() int {
	return r.bestGeneration
}

func (r *Result) Generations() int {
	return len(r.champions)
}

func (r *Result) Duration() time.Duration {
	return r.duration
}

func (r *Result) Plan() domain.AllocationPlan {
	return r.problem.ToPlan(r.best)
}

// Champions 返回每一代的冠军，withPlans 为 false 时只包含适应度
func (r *Result) Champions(withPlans bool) []domain.GenerationChampion {
	champions := make([]domain.GenerationChampion, len(r.champions))
	for g, ch := range r.champions {
		champions[g] = domain.GenerationChampion{
			Generation: g,
			Fitness:    ch.fitness,
		}
		if withPlans {
			plan := r.problem.ToPlan(ch)
			champions[g].Plan = &plan
		}
	}
	return champions
}

func NewEngine(parameters *Parameters, operators []domain.Operator, orders []domain.ServiceOrder, opts ...Option) (*Engine, error) {
	if err := parameters.Validate(); err != nil {
		return nil, err
	}

	problem, err := NewProblem(operators, orders, int(parameters.HorizonDays), parameters.FitnessVariant)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		parameters: parameters,
		problem:    problem,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if len(e.seedPlans) > int(parameters.PopulationSize) {
		return nil, fmt.Errorf("%w: 初始方案数量 (%d) 超过了种群大小 (%d)", ErrInvalidParameters, len(e.seedPlans), parameters.PopulationSize)
	}
	// 提前检查外部方案，避免运行到一半才失败
	for _, plan := range e.seedPlans {
		if _, err := problem.FromPlan(plan); err != nil {
			return nil, err
		}
	}

	seed := parameters.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	e.rng = rand.New(rand.NewPCG(seed, seed))

	return e, nil
}

func (e *Engine) Problem() *Problem {
	return e.problem
}

// Run 执行遗传算法，返回所有代冠军中适应度最高的方案
// ctx 只在两代之间检查
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	populationSize := int(e.parameters.PopulationSize)
	maxGenerations := int(e.parameters.MaxGenerations)

	// 生成初始种群
	pop := make([]*Chromosome, populationSize)
	for i := range pop {
		if i < len(e.seedPlans) {
			ch, err := e.problem.FromPlan(e.seedPlans[i])
			if err != nil {
				return nil, err
			}
			pop[i] = ch
			continue
		}
		pop[i] = e.problem.CreateInitial(e.rng)
	}

	result := &Result{
		problem:   e.problem,
		champions: make([]*Chromosome, 0, maxGenerations),
	}
	stagnant := 0

	for gen := 0; gen < maxGenerations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// 找到本代最佳样本
		sortByFitness(pop)
		champion := pop[0]
		result.champions = append(result.champions, champion)

		// 染色体不会被修改，因此这里不需要深拷贝
		if result.best == nil || champion.fitness > result.best.fitness {
			result.best = champion
			result.bestGeneration = gen
			stagnant = 0
		} else {
			stagnant++
		}

		e.logger.Debug("完成一代进化", "generation", gen, "fitness", champion.fitness, "best", result.best.fitness)
		if e.onGeneration != nil {
			e.onGeneration(domain.GenerationChampion{Generation: gen, Fitness: champion.fitness})
		}

		if e.parameters.StagnationLimit > 0 && stagnant >= int(e.parameters.StagnationLimit) {
			e.logger.Info("适应度长时间没有改进，提前停止", "generation", gen, "stagnant", stagnant)
			break
		}

		// 繁殖
		next, err := e.breed(ctx, pop, e.mutationRate(gen))
		if err != nil {
			return nil, err
		}

		if e.parameters.ReinitInterval > 0 && gen%int(e.parameters.ReinitInterval) == 0 {
			e.reinit(next)
		}

		pop = next
	}

	result.duration = time.Since(start)
	e.logger.Info("分配完成",
		"generations", len(result.champions),
		"best_generation", result.bestGeneration,
		"fitness", result.best.fitness,
		"duration", result.duration,
	)

	return result, nil
}

// breed 保留精英并产生其余的子代
// 每个子代使用独立的随机数生成器，其种子按槽位顺序从主生成器中取出，因此结果与并行度无关
func (e *Engine) breed(ctx context.Context, pop []*Chromosome, rate float64) ([]*Chromosome, error) {
	populationSize := len(pop)
	eliteCount := int(e.parameters.EliteCount)

	next := make([]*Chromosome, populationSize)
	copy(next, pop[:eliteCount])

	seeds := make([][2]uint64, populationSize-eliteCount)
	for i := range seeds {
		seeds[i] = [2]uint64{e.rng.Uint64(), e.rng.Uint64()}
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(max(1, int(e.parameters.Parallelism)))

	for i := eliteCount; i < populationSize; i++ {
		seed := seeds[i-eliteCount]
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(seed[0], seed[1]))

			// 选择两个父本
			p1 := e.selectParent(pop, rng)
			p2 := e.selectParent(pop, rng)

			child := e.problem.Crossover(p1, p2, rng)
			next[i] = e.problem.Mutate(child, rate, rng)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return next, nil
}

// reinit 用新的随机个体替换子代中最差的 min(P/2, P-E) 个
// 只在 next[eliteCount:] 中排序和替换，保留下来的精英即使比部分子代差也不会被替换
func (e *Engine) reinit(next []*Chromosome) {
	eliteCount := int(e.parameters.EliteCount)
	offspring := next[eliteCount:]
	sortByFitness(offspring)

	n := min(len(next)/2, len(offspring))
	for i := len(offspring) - n; i < len(offspring); i++ {
		offspring[i] = e.problem.CreateInitial(e.rng)
	}
}

func (e *Engine) selectParent(pop []*Chromosome, rng *rand.Rand) *Chromosome {
	if e.parameters.Selection == SelectionTournament {
		return selectByTournament(pop, int(e.parameters.TournamentSize), rng)
	}
	return selectByTruncation(pop, int(e.parameters.EliteCount), rng)
}

// mutationRate 返回第 gen 代的变异概率
func (e *Engine) mutationRate(gen int) float64 {
	rate := e.parameters.MutationRate
	if e.parameters.MutationDecay <= 0 {
		return rate
	}

	rate -= float64(gen) / float64(e.parameters.MaxGenerations) * e.parameters.MutationDecay
	if rate < e.parameters.MinMutationRate {
		rate = e.parameters.MinMutationRate
	}
	return rate
}
