package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/allocator"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/config"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/metrics"
)

type statusUpdate struct {
	status  domain.AllocationRunStatus
	message string
}

type fakeStore struct {
	operators []*domain.Operator
	orders    []*domain.ServiceOrder
	finishErr error

	updates  []statusUpdate
	finished *domain.AllocationRun
}

func (s *fakeStore) GetAllOperators() ([]*domain.Operator, error) {
	return s.operators, nil
}

func (s *fakeStore) GetAllServiceOrders() ([]*domain.ServiceOrder, error) {
	return s.orders, nil
}

func (s *fakeStore) UpdateAllocationRunStatus(id string, status domain.AllocationRunStatus, message string) error {
	s.updates = append(s.updates, statusUpdate{status: status, message: message})
	return nil
}

func (s *fakeStore) FinishAllocationRun(run *domain.AllocationRun) error {
	if s.finishErr != nil {
		return s.finishErr
	}
	s.finished = run
	return nil
}

type fakeProgress struct {
	started     bool
	generations []int
	statuses    []domain.AllocationRunStatus
}

func (p *fakeProgress) Start(ctx context.Context, runID string, status domain.AllocationRunStatus) error {
	p.started = true
	return nil
}

func (p *fakeProgress) Record(ctx context.Context, runID string, champion domain.GenerationChampion) error {
	p.generations = append(p.generations, champion.Generation)
	return nil
}

func (p *fakeProgress) SetStatus(ctx context.Context, runID string, status domain.AllocationRunStatus) error {
	p.statuses = append(p.statuses, status)
	return errors.New("redis 不可用")
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Redis.OperationExpiration = 1
	cfg.Allocator.PopulationSize = 10
	cfg.Allocator.MaxGenerations = 8
	cfg.Allocator.MutationRate = 0.3
	cfg.Allocator.MinMutationRate = 0.05
	cfg.Allocator.EliteCount = 2
	cfg.Allocator.ReinitInterval = 3
	cfg.Allocator.HorizonDays = 3
	cfg.Allocator.Selection = "truncation"
	cfg.Allocator.TournamentSize = 3
	cfg.Allocator.FitnessVariant = "scaled"
	cfg.Allocator.Parallelism = 2
	cfg.Allocator.Timeout = 30
	return cfg
}

func testTables() *fakeStore {
	return &fakeStore{
		operators: []*domain.Operator{
			{ID: "A", Skills: []domain.Skill{domain.SkillPainting}, Level: domain.SkillLevelSenior, HoursPerDay: 8},
			{ID: "B", Skills: []domain.Skill{domain.SkillElectrical}, Level: domain.SkillLevelMid, HoursPerDay: 8},
		},
		orders: []*domain.ServiceOrder{
			{ID: "O1", RequiredSkills: []domain.Skill{domain.SkillPainting}, EstimatedHours: 4, Priority: domain.PriorityHigh, ExpectedStartDay: 1},
			{ID: "O2", RequiredSkills: []domain.Skill{domain.SkillElectrical}, EstimatedHours: 6, Priority: domain.PriorityLow, ExpectedStartDay: 2},
			{ID: "O3", RequiredSkills: []domain.Skill{domain.SkillWelding}, EstimatedHours: 3, Priority: domain.PriorityUrgent, ExpectedStartDay: 1},
		},
	}
}

func newTestRunner(store Store, progress ProgressRecorder) *Runner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(testConfig(), store, progress, metrics.New(prometheus.NewRegistry()), logger)
}

func TestEngineParametersDefaultsStrategies(t *testing.T) {
	p := DefaultParameters(testConfig())
	p.Selection = ""
	p.FitnessVariant = ""
	p.Seed = 7

	parameters := EngineParameters(p)
	assert.Equal(t, allocator.SelectionTruncation, parameters.Selection)
	assert.Equal(t, allocator.FitnessScaled, parameters.FitnessVariant)
	assert.Equal(t, uint64(7), parameters.Seed)
	assert.Equal(t, int32(10), parameters.PopulationSize)
	require.NoError(t, parameters.Validate())
}

func TestExecuteStoresFinishedRun(t *testing.T) {
	store := testTables()
	progress := &fakeProgress{}
	r := newTestRunner(store, progress)

	parameters := DefaultParameters(testConfig())
	parameters.Seed = 1
	parameters.SeedWithGreedy = true
	run := &domain.AllocationRun{ID: "run-1", Status: domain.AllocationRunStatusPending, Parameters: parameters}

	require.NoError(t, r.Execute(context.Background(), run))

	require.Same(t, run, store.finished)
	assert.Equal(t, domain.AllocationRunStatusFinished, run.Status)
	require.NotNil(t, run.Plan)
	assert.Len(t, run.Plan.Allocations, 3)
	assert.Len(t, run.Champions, int(parameters.MaxGenerations))
	require.NotNil(t, run.Summary)
	// 没有人会焊接
	assert.Equal(t, []string{"O3"}, run.Summary.UnassignedOrders)

	assert.Equal(t, []statusUpdate{{status: domain.AllocationRunStatusRunning}}, store.updates)
	assert.True(t, progress.started)
	assert.Len(t, progress.generations, int(parameters.MaxGenerations))
	// 进度写入失败不影响任务结果
	assert.Equal(t, []domain.AllocationRunStatus{domain.AllocationRunStatusFinished}, progress.statuses)
}

func TestExecuteMarksRunFailed(t *testing.T) {
	t.Run("invalid parameters", func(t *testing.T) {
		store := testTables()
		r := newTestRunner(store, nil)

		parameters := DefaultParameters(testConfig())
		parameters.EliteCount = parameters.PopulationSize
		run := &domain.AllocationRun{ID: "run-2", Parameters: parameters}

		err := r.Execute(context.Background(), run)
		require.ErrorIs(t, err, allocator.ErrInvalidParameters)
		assert.Equal(t, domain.AllocationRunStatusFailed, run.Status)
		require.Len(t, store.updates, 2)
		assert.Equal(t, domain.AllocationRunStatusFailed, store.updates[1].status)
		assert.Equal(t, err.Error(), store.updates[1].message)
		assert.Nil(t, store.finished)
	})

	t.Run("save failure", func(t *testing.T) {
		store := testTables()
		store.finishErr = errors.New("连接已断开")
		r := newTestRunner(store, nil)

		run := &domain.AllocationRun{ID: "run-3", Parameters: DefaultParameters(testConfig())}

		err := r.Execute(context.Background(), run)
		require.ErrorIs(t, err, store.finishErr)
		assert.Equal(t, domain.AllocationRunStatusFailed, run.Status)
		assert.Equal(t, domain.AllocationRunStatusFailed, store.updates[len(store.updates)-1].status)
	})

	t.Run("timeout", func(t *testing.T) {
		store := testTables()
		r := newTestRunner(store, nil)

		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		run := &domain.AllocationRun{ID: "run-4", Parameters: DefaultParameters(testConfig())}

		err := r.Execute(ctx, run)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrInterrupted)
		assert.Equal(t, domain.AllocationRunStatusFailed, run.Status)
	})
}

func TestExecuteInterruptedRunGoesBackToPending(t *testing.T) {
	store := testTables()
	progress := &fakeProgress{}
	r := newTestRunner(store, progress)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run := &domain.AllocationRun{ID: "run-5", Parameters: DefaultParameters(testConfig())}

	err := r.Execute(ctx, run)
	require.ErrorIs(t, err, ErrInterrupted)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, domain.AllocationRunStatusPending, run.Status)
	require.Len(t, store.updates, 2)
	assert.Equal(t, domain.AllocationRunStatusRunning, store.updates[0].status)
	assert.Equal(t, domain.AllocationRunStatusPending, store.updates[1].status)
	assert.Nil(t, store.finished)
	assert.Equal(t, []domain.AllocationRunStatus{domain.AllocationRunStatusPending}, progress.statuses)
}
