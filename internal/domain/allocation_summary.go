package domain

type PrioritySummary struct {
	Priority   Priority `json:"priority"`
	Assigned   int      `json:"assigned"`
	Unassigned int      `json:"unassigned"`
	Late       int      `json:"late"`
}

type OperatorLoad struct {
	OperatorID    string  `json:"operatorID"`
	Orders        int     `json:"orders"`
	Hours         int     `json:"hours"`
	CapacityHours int     `json:"capacityHours"`
	OvertimeHours int     `json:"overtimeHours"`
	Utilization   float64 `json:"utilization"`
}

type DayLoad struct {
	Day    int `json:"day"`
	Orders int `json:"orders"`
	Hours  int `json:"hours"`
}

type LateOrder struct {
	OrderID  string   `json:"orderID"`
	DaysLate int      `json:"daysLate"`
	Priority Priority `json:"priority"`
}

// AllocationSummary 为分配方案的统计报告
type AllocationSummary struct {
	TotalOrders      int               `json:"totalOrders"`
	AssignedOrders   int               `json:"assignedOrders"`
	UnassignedOrders []string          `json:"unassignedOrders"`
	OnTimeOrders     int               `json:"onTimeOrders"`
	LateOrders       []LateOrder       `json:"lateOrders"`
	ByPriority       []PrioritySummary `json:"byPriority"`
	Operators        []OperatorLoad    `json:"operators"`
	Days             []DayLoad         `json:"days"`

	// 按技能覆盖率、是否按时、是否超时划分的完成度
	FullyServed        []string `json:"fullyServed"`
	PartiallyServed    []string `json:"partiallyServed"`
	InadequatelyServed []string `json:"inadequatelyServed"`

	LevelMismatches    []string `json:"levelMismatches"`
	AverageSkillMatch  float64  `json:"averageSkillMatch"`
	WorkloadMean       float64  `json:"workloadMean"`
	WorkloadStdDev     float64  `json:"workloadStdDev"`
	OvertimeCells      int      `json:"overtimeCells"`
	TotalOvertimeHours int      `json:"totalOvertimeHours"`
}
