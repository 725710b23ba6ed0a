package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"gonum.org/v1/gonum/stat"
)

var ErrUnknownReference = errors.New("分配方案引用了不存在的工单或操作员")

// Summarize 生成分配方案的统计报告
// 状态以日期重新计算，不依赖方案中记录的 Status
func Summarize(operators []domain.Operator, orders []domain.ServiceOrder, horizonDays int, plan domain.AllocationPlan) (*domain.AllocationSummary, error) {
	operatorIndex := make(map[string]int, len(operators))
	for i, operator := range operators {
		operatorIndex[operator.ID] = i
	}
	orderIndex := make(map[string]int, len(orders))
	for i, order := range orders {
		orderIndex[order.ID] = i
	}

	// 找到每个工单的分配，没有出现在方案中的工单视为未分配
	allocated := make([]*domain.Allocation, len(orders))
	for k := range plan.Allocations {
		allocation := &plan.Allocations[k]
		i, exists := orderIndex[allocation.OrderID]
		if !exists {
			return nil, fmt.Errorf("%w: 工单 %s", ErrUnknownReference, allocation.OrderID)
		}
		if !allocation.Assigned() {
			continue
		}
		if _, exists := operatorIndex[allocation.OperatorID]; !exists {
			return nil, fmt.Errorf("%w: 操作员 %s", ErrUnknownReference, allocation.OperatorID)
		}
		if allocation.Day > horizonDays {
			return nil, fmt.Errorf("工单 %s 的日期 %d 超出规划范围 [1, %d]", allocation.OrderID, allocation.Day, horizonDays)
		}
		allocated[i] = allocation
	}

	summary := &domain.AllocationSummary{
		TotalOrders:        len(orders),
		UnassignedOrders:   []string{},
		LateOrders:         []domain.LateOrder{},
		ByPriority:         make([]domain.PrioritySummary, len(domain.Priorities)),
		Operators:          make([]domain.OperatorLoad, len(operators)),
		Days:               make([]domain.DayLoad, horizonDays),
		FullyServed:        []string{},
		PartiallyServed:    []string{},
		InadequatelyServed: []string{},
		LevelMismatches:    []string{},
	}
	for k, priority := range domain.Priorities {
		summary.ByPriority[k].Priority = priority
	}
	for j, operator := range operators {
		summary.Operators[j] = domain.OperatorLoad{
			OperatorID:    operator.ID,
			CapacityHours: operator.HoursPerDay * horizonDays,
		}
	}
	for d := range summary.Days {
		summary.Days[d].Day = d + 1
	}

	// 每个 (操作员, 天) 的累计工时
	hours := make([]int, len(operators)*horizonDays)
	for i, allocation := range allocated {
		if allocation == nil {
			continue
		}
		j := operatorIndex[allocation.OperatorID]
		hours[j*horizonDays+allocation.Day-1] += orders[i].EstimatedHours
	}

	skillMatchTotal := 0.0
	for i, order := range orders {
		byPriority := priorityBucket(summary, order.Priority)

		allocation := allocated[i]
		if allocation == nil {
			summary.UnassignedOrders = append(summary.UnassignedOrders, order.ID)
			if byPriority != nil {
				byPriority.Unassigned++
			}
			continue
		}

		j := operatorIndex[allocation.OperatorID]
		operator := &operators[j]

		summary.AssignedOrders++
		if byPriority != nil {
			byPriority.Assigned++
		}

		load := &summary.Operators[j]
		load.Orders++
		load.Hours += order.EstimatedHours

		day := &summary.Days[allocation.Day-1]
		day.Orders++
		day.Hours += order.EstimatedHours

		daysLate := allocation.Day - order.ExpectedStartDay
		if daysLate > 0 {
			summary.LateOrders = append(summary.LateOrders, domain.LateOrder{
				OrderID:  order.ID,
				DaysLate: daysLate,
				Priority: order.Priority,
			})
			if byPriority != nil {
				byPriority.Late++
			}
		} else {
			summary.OnTimeOrders++
		}

		_, fraction := domain.SkillMatch(operator.Skills, order.RequiredSkills)
		skillMatchTotal += fraction

		withinCapacity := hours[j*horizonDays+allocation.Day-1] <= operator.HoursPerDay
		switch {
		case fraction == 1 && daysLate <= 0 && withinCapacity:
			summary.FullyServed = append(summary.FullyServed, order.ID)
		case fraction >= domain.MinimumSkillMatch:
			summary.PartiallyServed = append(summary.PartiallyServed, order.ID)
		default:
			summary.InadequatelyServed = append(summary.InadequatelyServed, order.ID)
		}

		if !domain.LevelFitsPriority(operator.Level, order.Priority) {
			summary.LevelMismatches = append(summary.LevelMismatches, order.ID)
		}
	}

	if summary.AssignedOrders > 0 {
		summary.AverageSkillMatch = skillMatchTotal / float64(summary.AssignedOrders)
	}

	// 超时统计
	for j, operator := range operators {
		for d := 0; d < horizonDays; d++ {
			if excess := hours[j*horizonDays+d] - operator.HoursPerDay; excess > 0 {
				summary.Operators[j].OvertimeHours += excess
				summary.OvertimeCells++
				summary.TotalOvertimeHours += excess
			}
		}
	}

	// 工作量均衡情况
	workloads := make([]float64, len(operators))
	for j := range summary.Operators {
		load := &summary.Operators[j]
		workloads[j] = float64(load.Hours)
		if load.CapacityHours > 0 {
			load.Utilization = float64(load.Hours) / float64(load.CapacityHours)
		}
	}
	if len(workloads) > 0 {
		mean, std := stat.PopMeanStdDev(workloads, nil)
		summary.WorkloadMean = mean
		if !math.IsNaN(std) {
			summary.WorkloadStdDev = std
		}
	}

	return summary, nil
}

func priorityBucket(summary *domain.AllocationSummary, priority domain.Priority) *domain.PrioritySummary {
	rank := domain.PriorityRank(priority)
	if rank == 0 {
		return nil
	}
	return &summary.ByPriority[rank-1]
}
