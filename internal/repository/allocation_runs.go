package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

func (r *Repository) CreateAllocationRun(run *domain.AllocationRun) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	parameters, err := json.Marshal(run.Parameters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO allocation_runs (id, status, parameters, requested_by, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, version
	`

	args := []any{run.ID, run.Status, parameters, run.RequestedBy, run.Message}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.CreatedAt, &run.Version)
}

// UpdateAllocationRunStatus 只更新状态和说明，失败的任务也通过这里记录原因
func (r *Repository) UpdateAllocationRunStatus(id string, status domain.AllocationRunStatus, message string) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		UPDATE allocation_runs
		SET
			status = $1,
			message = $2,
			finished_at = CASE WHEN $1 IN ('finished', 'failed') THEN NOW() ELSE finished_at END,
			version = version + 1
		WHERE id = $3
	`

	result, err := r.dbpool.ExecContext(ctx, query, status, message, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// FinishAllocationRun 在一个事务中保存分配方案、每一代的冠军以及统计报告
func (r *Repository) FinishAllocationRun(run *domain.AllocationRun) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return err
	}

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var fitness sql.NullFloat64
	if run.Plan != nil {
		fitness = sql.NullFloat64{Float64: run.Plan.Fitness, Valid: true}
	}

	query := `
		UPDATE allocation_runs
		SET
			status = $1,
			fitness = $2,
			best_generation = $3,
			summary = $4,
			message = $5,
			finished_at = NOW(),
			version = version + 1
		WHERE id = $6
		RETURNING finished_at, version
	`

	var finishedAt time.Time
	args := []any{run.Status, fitness, run.BestGeneration, summary, run.Message, run.ID}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&finishedAt, &run.Version); err != nil {
		return err
	}
	run.FinishedAt = &finishedAt

	// 重新运行同一个任务时覆盖之前的结果
	if _, err := tx.ExecContext(ctx, `DELETE FROM allocation_run_allocations WHERE run_id = $1`, run.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM allocation_run_champions WHERE run_id = $1`, run.ID); err != nil {
		return err
	}

	if run.Plan != nil && len(run.Plan.Allocations) > 0 {
		n := len(run.Plan.Allocations)
		positions := make([]int32, n)
		orderIDs := make([]string, n)
		days := make([]int32, n)
		operatorIDs := make([]string, n)
		statuses := make([]string, n)
		for i, allocation := range run.Plan.Allocations {
			positions[i] = int32(i)
			orderIDs[i] = allocation.OrderID
			days[i] = int32(allocation.Day)
			operatorIDs[i] = allocation.OperatorID
			statuses[i] = string(allocation.Status)
		}

		query := `
			INSERT INTO allocation_run_allocations (run_id, position, order_id, day, operator_id, status)
			SELECT $1, * FROM unnest($2::integer[], $3::text[], $4::integer[], $5::text[], $6::text[])
		`
		if _, err := tx.ExecContext(ctx, query, run.ID, positions, orderIDs, days, operatorIDs, statuses); err != nil {
			return err
		}
	}

	if len(run.Champions) > 0 {
		generations := make([]int32, len(run.Champions))
		fitnesses := make([]float64, len(run.Champions))
		for i, champion := range run.Champions {
			generations[i] = int32(champion.Generation)
			fitnesses[i] = champion.Fitness
		}

		query := `
			INSERT INTO allocation_run_champions (run_id, generation, fitness)
			SELECT $1, * FROM unnest($2::integer[], $3::double precision[])
		`
		if _, err := tx.ExecContext(ctx, query, run.ID, generations, fitnesses); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const allocationRunColumns = `id::text, status, parameters, fitness, best_generation, summary, requested_by, message, created_at, finished_at, version`

type allocationRunRow struct {
	parameters []byte
	fitness    sql.NullFloat64
	summary    []byte
	finishedAt sql.NullTime
}

func (row *allocationRunRow) dst(run *domain.AllocationRun) []any {
	return []any{&run.ID, &run.Status, &row.parameters, &row.fitness, &run.BestGeneration, &row.summary, &run.RequestedBy, &run.Message, &run.CreatedAt, &row.finishedAt, &run.Version}
}

func (row *allocationRunRow) fill(run *domain.AllocationRun) error {
	if err := json.Unmarshal(row.parameters, &run.Parameters); err != nil {
		return err
	}
	if row.fitness.Valid {
		run.Plan = &domain.AllocationPlan{
			Allocations: make([]domain.Allocation, 0),
			Fitness:     row.fitness.Float64,
		}
	}
	if len(row.summary) > 0 && string(row.summary) != "null" {
		run.Summary = &domain.AllocationSummary{}
		if err := json.Unmarshal(row.summary, run.Summary); err != nil {
			return err
		}
	}
	if row.finishedAt.Valid {
		run.FinishedAt = &row.finishedAt.Time
	}
	return nil
}

// GetAllAllocationRuns 返回所有运行记录，不包含分配方案的明细和冠军序列
func (r *Repository) GetAllAllocationRuns() ([]*domain.AllocationRun, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, `SELECT `+allocationRunColumns+` FROM allocation_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.AllocationRun, 0)
	for rows.Next() {
		run := &domain.AllocationRun{}
		row := &allocationRunRow{}
		if err := rows.Scan(row.dst(run)...); err != nil {
			return nil, err
		}
		if err := row.fill(run); err != nil {
			return nil, err
		}
		// 列表中不返回统计报告
		run.Summary = nil
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

func (r *Repository) GetAllocationRunByID(id string) (*domain.AllocationRun, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	run := &domain.AllocationRun{Champions: make([]domain.GenerationChampion, 0)}
	row := &allocationRunRow{}

	query := `SELECT ` + allocationRunColumns + ` FROM allocation_runs WHERE id = $1`
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(row.dst(run)...); err != nil {
		return nil, err
	}
	if err := row.fill(run); err != nil {
		return nil, err
	}

	if run.Plan != nil {
		query := `
			SELECT order_id, day, operator_id, status
			FROM allocation_run_allocations
			WHERE run_id = $1
			ORDER BY position
		`

		rows, err := r.dbpool.QueryContext(ctx, query, id)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		for rows.Next() {
			allocation := domain.Allocation{}
			if err := rows.Scan(&allocation.OrderID, &allocation.Day, &allocation.OperatorID, &allocation.Status); err != nil {
				return nil, err
			}
			run.Plan.Allocations = append(run.Plan.Allocations, allocation)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	rows, err := r.dbpool.QueryContext(ctx, `SELECT generation, fitness FROM allocation_run_champions WHERE run_id = $1 ORDER BY generation`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		champion := domain.GenerationChampion{}
		if err := rows.Scan(&champion.Generation, &champion.Fitness); err != nil {
			return nil, err
		}
		run.Champions = append(run.Champions, champion)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return run, nil
}
