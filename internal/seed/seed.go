package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/utils"
)

var (
	operatorHeaders = []string{"id", "full_name", "skills", "level", "shift", "hours_per_day"}
	orderHeaders    = []string{"id", "description", "required_skills", "estimated_hours", "priority", "expected_start_day"}
)

// Tables 为导入数据所需的操作，由 repository.Repository 实现
type Tables interface {
	CreateOperator(operator *domain.Operator) error
	CreateServiceOrder(order *domain.ServiceOrder) error
}

// DefaultOperators 返回一组固定的操作员，用于演示和测试
func DefaultOperators() []*domain.Operator {
	return []*domain.Operator{
		{ID: "OP001", FullName: "王伟", Skills: []domain.Skill{domain.SkillPainting, domain.SkillElectrical}, Level: domain.SkillLevelSenior, Shift: domain.ShiftMorning, HoursPerDay: 8},
		{ID: "OP002", FullName: "李静", Skills: []domain.Skill{domain.SkillPlumbing, domain.SkillMasonry}, Level: domain.SkillLevelMid, Shift: domain.ShiftAfternoon, HoursPerDay: 8},
		{ID: "OP003", FullName: "张强", Skills: []domain.Skill{domain.SkillWelding, domain.SkillPainting}, Level: domain.SkillLevelSenior, Shift: domain.ShiftNight, HoursPerDay: 9},
		{ID: "OP004", FullName: "刘洋", Skills: []domain.Skill{domain.SkillElectrical, domain.SkillPlumbing}, Level: domain.SkillLevelJunior, Shift: domain.ShiftMorning, HoursPerDay: 7},
	}
}

// DefaultServiceOrders 返回与 DefaultOperators 配套的 10 个工单，规划天数为 5
func DefaultServiceOrders() []*domain.ServiceOrder {
	order := func(id string, skills []domain.Skill, hours int, priority domain.Priority, day int) *domain.ServiceOrder {
		return &domain.ServiceOrder{ID: id, RequiredSkills: skills, EstimatedHours: hours, Priority: priority, ExpectedStartDay: day}
	}

	return []*domain.ServiceOrder{
		order("SO001", []domain.Skill{domain.SkillWelding, domain.SkillMasonry}, 2, domain.PriorityMedium, 3),
		order("SO002", []domain.Skill{domain.SkillPainting, domain.SkillPlumbing}, 8, domain.PriorityHigh, 2),
		order("SO003", []domain.Skill{domain.SkillPlumbing}, 5, domain.PriorityUrgent, 5),
		order("SO004", []domain.Skill{domain.SkillPlumbing, domain.SkillPainting}, 2, domain.PriorityUrgent, 1),
		order("SO005", []domain.Skill{domain.SkillMasonry}, 5, domain.PriorityHigh, 3),
		order("SO006", []domain.Skill{domain.SkillMasonry}, 7, domain.PriorityLow, 5),
		order("SO007", []domain.Skill{domain.SkillElectrical}, 7, domain.PriorityLow, 4),
		order("SO008", []domain.Skill{domain.SkillWelding}, 8, domain.PriorityLow, 5),
		order("SO009", []domain.Skill{domain.SkillPainting}, 3, domain.PriorityLow, 4),
		order("SO010", []domain.Skill{domain.SkillMasonry, domain.SkillWelding}, 2, domain.PriorityHigh, 5),
	}
}

// readRecords 读取 CSV 文件，每一行按表头转换为一个 map
func readRecords(r io.Reader, required []string) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	for _, header := range required {
		if !slices.Contains(headers, header) {
			return nil, fmt.Errorf("没有找到 %s 列", header)
		}
	}

	// 读取数据
	var records []map[string]string
	for {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("读取文件失败: %w", err)
		}

		record := make(map[string]string)
		for i, value := range row {
			record[headers[i]] = strings.TrimSpace(value)
		}
		records = append(records, record)
	}

	return records, nil
}

// 多项技能之间用 | 分隔
func parseSkills(value string) []domain.Skill {
	skills := []domain.Skill{}
	for _, s := range strings.Split(value, "|") {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, domain.Skill(s))
		}
	}
	return skills
}

func ReadOperatorsCSV(r io.Reader) ([]*domain.Operator, error) {
	records, err := readRecords(r, operatorHeaders)
	if err != nil {
		return nil, err
	}

	operators := make([]*domain.Operator, 0, len(records))
	for i, record := range records {
		hours, err := strconv.Atoi(record["hours_per_day"])
		if err != nil {
			return nil, fmt.Errorf("第 %d 行的每日工时无效: %w", i+2, err)
		}

		operator := &domain.Operator{
			ID:          record["id"],
			FullName:    record["full_name"],
			Skills:      parseSkills(record["skills"]),
			Level:       domain.SkillLevel(record["level"]),
			Shift:       domain.Shift(record["shift"]),
			HoursPerDay: hours,
		}
		if err := utils.ValidateOperator(operator); err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", i+2, err)
		}

		operators = append(operators, operator)
	}

	return operators, nil
}

func ReadServiceOrdersCSV(r io.Reader) ([]*domain.ServiceOrder, error) {
	records, err := readRecords(r, orderHeaders)
	if err != nil {
		return nil, err
	}

	orders := make([]*domain.ServiceOrder, 0, len(records))
	for i, record := range records {
		hours, err := strconv.Atoi(record["estimated_hours"])
		if err != nil {
			return nil, fmt.Errorf("第 %d 行的预计工时无效: %w", i+2, err)
		}
		day, err := strconv.Atoi(record["expected_start_day"])
		if err != nil {
			return nil, fmt.Errorf("第 %d 行的预计开始日期无效: %w", i+2, err)
		}

		order := &domain.ServiceOrder{
			ID:               record["id"],
			Description:      record["description"],
			RequiredSkills:   parseSkills(record["required_skills"]),
			EstimatedHours:   hours,
			Priority:         domain.Priority(record["priority"]),
			ExpectedStartDay: day,
		}
		if err := utils.ValidateServiceOrder(order); err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", i+2, err)
		}

		orders = append(orders, order)
	}

	return orders, nil
}

// Insert 逐条插入操作员和工单，单条失败时记录日志并继续，返回成功插入的数量
func Insert(tables Tables, operators []*domain.Operator, orders []*domain.ServiceOrder) (int, int) {
	insertedOperators := 0
	for _, operator := range operators {
		if err := tables.CreateOperator(operator); err != nil {
			slog.Error("无法插入操作员", "id", operator.ID, "error", err)
			continue
		}
		insertedOperators++
	}

	insertedOrders := 0
	for _, order := range orders {
		if err := tables.CreateServiceOrder(order); err != nil {
			slog.Error("无法插入工单", "id", order.ID, "error", err)
			continue
		}
		insertedOrders++
	}

	return insertedOperators, insertedOrders
}
