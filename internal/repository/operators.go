package repository

import (
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

// scanOperators 将 LEFT JOIN 出来的多行合并为操作员列表，顺序与查询结果一致
func scanOperators(rows *sql.Rows) ([]*domain.Operator, error) {
	operators := make([]*domain.Operator, 0)
	operatorsMap := make(map[string]*domain.Operator)

	for rows.Next() {
		var row struct {
			ID          string
			FullName    string
			Level       string
			Shift       string
			HoursPerDay int
			CreatedAt   time.Time
			Version     int32
			Skill       sql.NullString
		}

		dst := []any{&row.ID, &row.FullName, &row.Level, &row.Shift, &row.HoursPerDay, &row.CreatedAt, &row.Version, &row.Skill}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		operator, exists := operatorsMap[row.ID]
		if !exists {
			operator = &domain.Operator{
				ID:          row.ID,
				FullName:    row.FullName,
				Skills:      make([]domain.Skill, 0),
				Level:       domain.SkillLevel(row.Level),
				Shift:       domain.Shift(row.Shift),
				HoursPerDay: row.HoursPerDay,
				CreatedAt:   row.CreatedAt,
				Version:     row.Version,
			}
			operatorsMap[row.ID] = operator
			operators = append(operators, operator)
		}

		// 没有任何技能的操作员
		if !row.Skill.Valid {
			continue
		}

		operator.Skills = append(operator.Skills, domain.Skill(row.Skill.String))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return operators, nil
}

const operatorsQuery = `
	SELECT o.id, o.full_name, o.level, o.shift, o.hours_per_day, o.created_at, o.version, os.skill
	FROM operators o
	LEFT JOIN operator_skills os ON o.id = os.operator_id
`

func (r *Repository) GetAllOperators() ([]*domain.Operator, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, operatorsQuery+` ORDER BY o.id, os.skill`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOperators(rows)
}

func (r *Repository) GetOperatorByID(id string) (*domain.Operator, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, operatorsQuery+` WHERE o.id = $1 ORDER BY os.skill`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	operators, err := scanOperators(rows)
	if err != nil {
		return nil, err
	}
	if len(operators) == 0 {
		return nil, sql.ErrNoRows
	}

	return operators[0], nil
}

func (r *Repository) CreateOperator(operator *domain.Operator) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO operators (id, full_name, level, shift, hours_per_day)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, version
	`

	args := []any{operator.ID, operator.FullName, operator.Level, operator.Shift, operator.HoursPerDay}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&operator.CreatedAt, &operator.Version); err != nil {
		return err
	}

	for _, skill := range operator.Skills {
		query := `
			INSERT INTO operator_skills (operator_id, skill)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`
		if _, err := tx.ExecContext(ctx, query, operator.ID, skill); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteOperator 删除操作员，不存在时返回 sql.ErrNoRows
func (r *Repository) DeleteOperator(id string) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, `DELETE FROM operators WHERE id = $1`, id)
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
