package utils

import (
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
)

// ValidateSkills 检查技能是否都在词表中且没有重复
func ValidateSkills(skills []domain.Skill) error {
	seen := make(map[domain.Skill]bool, len(skills))
	for _, skill := range skills {
		if !slices.Contains(domain.Skills, skill) {
			return fmt.Errorf("未知的技能 %q", skill)
		}
		if seen[skill] {
			return fmt.Errorf("技能 %q 重复", skill)
		}
		seen[skill] = true
	}
	return nil
}

func ValidateOperator(operator *domain.Operator) error {
	if operator.ID == "" {
		return fmt.Errorf("操作员 ID 不能为空")
	}
	if len(operator.Skills) == 0 {
		return fmt.Errorf("操作员 %s 至少需要一项技能", operator.ID)
	}
	if err := ValidateSkills(operator.Skills); err != nil {
		return fmt.Errorf("操作员 %s: %w", operator.ID, err)
	}
	if !slices.Contains(domain.SkillLevels, operator.Level) {
		return fmt.Errorf("操作员 %s 的技能等级 %q 无效", operator.ID, operator.Level)
	}
	if operator.Shift != "" && !slices.Contains(domain.Shifts, operator.Shift) {
		return fmt.Errorf("操作员 %s 的班次 %q 无效", operator.ID, operator.Shift)
	}
	if operator.HoursPerDay <= 0 {
		return fmt.Errorf("操作员 %s 的每日工时必须大于 0", operator.ID)
	}
	return nil
}

// ValidateServiceOrder 检查工单，所需技能可以为空
func ValidateServiceOrder(order *domain.ServiceOrder) error {
	if order.ID == "" {
		return fmt.Errorf("工单 ID 不能为空")
	}
	if err := ValidateSkills(order.RequiredSkills); err != nil {
		return fmt.Errorf("工单 %s: %w", order.ID, err)
	}
	if order.EstimatedHours <= 0 {
		return fmt.Errorf("工单 %s 的预计工时必须大于 0", order.ID)
	}
	if !slices.Contains(domain.Priorities, order.Priority) {
		return fmt.Errorf("工单 %s 的优先级 %q 无效", order.ID, order.Priority)
	}
	if order.ExpectedStartDay < 1 {
		return fmt.Errorf("工单 %s 的预计开始日期必须从 1 开始", order.ID)
	}
	return nil
}
