package repository

import (
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

func scanServiceOrders(rows *sql.Rows) ([]*domain.ServiceOrder, error) {
	orders := make([]*domain.ServiceOrder, 0)
	ordersMap := make(map[string]*domain.ServiceOrder)

	for rows.Next() {
		var row struct {
			ID               string
			Description      string
			EstimatedHours   int
			Priority         string
			ExpectedStartDay int
			CreatedAt        time.Time
			Version          int32
			Skill            sql.NullString
		}

		dst := []any{&row.ID, &row.Description, &row.EstimatedHours, &row.Priority, &row.ExpectedStartDay, &row.CreatedAt, &row.Version, &row.Skill}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		order, exists := ordersMap[row.ID]
		if !exists {
			order = &domain.ServiceOrder{
				ID:               row.ID,
				Description:      row.Description,
				RequiredSkills:   make([]domain.Skill, 0),
				EstimatedHours:   row.EstimatedHours,
				Priority:         domain.Priority(row.Priority),
				ExpectedStartDay: row.ExpectedStartDay,
				CreatedAt:        row.CreatedAt,
				Version:          row.Version,
			}
			ordersMap[row.ID] = order
			orders = append(orders, order)
		}

		// 工单可以没有技能要求
		if !row.Skill.Valid {
			continue
		}

		order.RequiredSkills = append(order.RequiredSkills, domain.Skill(row.Skill.String))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

const serviceOrdersQuery = `
	SELECT so.id, so.description, so.estimated_hours, so.priority, so.expected_start_day, so.created_at, so.version, sos.skill
	FROM service_orders so
	LEFT JOIN service_order_skills sos ON so.id = sos.order_id
`

func (r *Repository) GetAllServiceOrders() ([]*domain.ServiceOrder, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, serviceOrdersQuery+` ORDER BY so.id, sos.skill`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanServiceOrders(rows)
}

func (r *Repository) GetServiceOrderByID(id string) (*domain.ServiceOrder, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, serviceOrdersQuery+` WHERE so.id = $1 ORDER BY sos.skill`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders, err := scanServiceOrders(rows)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, sql.ErrNoRows
	}

	return orders[0], nil
}

func (r *Repository) CreateServiceOrder(order *domain.ServiceOrder) error {
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
		INSERT INTO service_orders (id, description, estimated_hours, priority, expected_start_day)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, version
	`

	args := []any{order.ID, order.Description, order.EstimatedHours, order.Priority, order.ExpectedStartDay}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&order.CreatedAt, &order.Version); err != nil {
		return err
	}

	for _, skill := range order.RequiredSkills {
		query := `
			INSERT INTO service_order_skills (order_id, skill)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`
		if _, err := tx.ExecContext(ctx, query, order.ID, skill); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) DeleteServiceOrder(id string) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, `DELETE FROM service_orders WHERE id = $1`, id)
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
