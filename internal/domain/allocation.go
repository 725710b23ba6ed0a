package domain

import "time"

type AllocationStatus string

const (
	AllocationStatusUnassigned AllocationStatus = "unassigned"
	AllocationStatusOnTime     AllocationStatus = "on_time"
	AllocationStatusLate       AllocationStatus = "late"
)

// Allocation 表示某个工单的分配结果，Day 为 0 且 OperatorID 为空时表示未分配
type Allocation struct {
	OrderID    string           `json:"orderID" yaml:"orderID"`
	Day        int              `json:"day" yaml:"day"`
	OperatorID string           `json:"operatorID" yaml:"operatorID"`
	Status     AllocationStatus `json:"status" yaml:"status"`
}

func (a Allocation) Assigned() bool {
	return a.OperatorID != "" && a.Day > 0
}

// AllocationPlan 为一个完整的分配方案，每个工单恰好对应一项分配
type AllocationPlan struct {
	Allocations []Allocation `json:"allocations"`
	Fitness     float64      `json:"fitness"`
}

type GenerationChampion struct {
	Generation int             `json:"generation"`
	Fitness    float64         `json:"fitness"`
	Plan       *AllocationPlan `json:"plan,omitempty"`
}

type AllocationRunStatus string

const (
	AllocationRunStatusPending  AllocationRunStatus = "pending"
	AllocationRunStatusRunning  AllocationRunStatus = "running"
	AllocationRunStatusFinished AllocationRunStatus = "finished"
	AllocationRunStatusFailed   AllocationRunStatus = "failed"
)

type AllocationRunParameters struct {
	PopulationSize  int32   `json:"populationSize" yaml:"populationSize" validate:"required,min=1"`
	MaxGenerations  int32   `json:"maxGenerations" yaml:"maxGenerations" validate:"required,min=1"`
	MutationRate    float64 `json:"mutationRate" yaml:"mutationRate" validate:"min=0,max=1"`
	MinMutationRate float64 `json:"minMutationRate" yaml:"minMutationRate" validate:"min=0,max=1"`
	MutationDecay   float64 `json:"mutationDecay" yaml:"mutationDecay" validate:"min=0,max=1"`
	EliteCount      int32   `json:"eliteCount" yaml:"eliteCount" validate:"required,min=1,ltfield=PopulationSize"`
	ReinitInterval  int32   `json:"reinitInterval" yaml:"reinitInterval" validate:"min=0"`
	HorizonDays     int32   `json:"horizonDays" yaml:"horizonDays" validate:"required,min=1"`
	Selection       string  `json:"selection" yaml:"selection" validate:"omitempty,oneof=truncation tournament"`
	TournamentSize  int32   `json:"tournamentSize" yaml:"tournamentSize" validate:"min=0"`
	FitnessVariant  string  `json:"fitnessVariant" yaml:"fitnessVariant" validate:"omitempty,oneof=scaled flat"`
	StagnationLimit int32   `json:"stagnationLimit" yaml:"stagnationLimit" validate:"min=0"`
	Parallelism     int32   `json:"parallelism" yaml:"parallelism" validate:"min=0"`
	Seed            uint64  `json:"seed" yaml:"seed"`
	SeedWithGreedy  bool    `json:"seedWithGreedy" yaml:"seedWithGreedy"`
}

type AllocationRun struct {
	ID             string                  `json:"id"`
	Status         AllocationRunStatus     `json:"status"`
	Parameters     AllocationRunParameters `json:"parameters"`
	Plan           *AllocationPlan         `json:"plan"`
	BestGeneration int                     `json:"bestGeneration"`
	Champions      []GenerationChampion    `json:"champions"`
	Summary        *AllocationSummary      `json:"summary,omitempty"`
	RequestedBy    int64                   `json:"requestedBy"`
	Message        string                  `json:"message"`
	CreatedAt      time.Time               `json:"createdAt"`
	FinishedAt     *time.Time              `json:"finishedAt"`
	Version        int32                   `json:"-"`
}

// AllocationJob 为投递到分配队列中的任务
type AllocationJob struct {
	RunID       string                  `json:"runID"`
	Parameters  AllocationRunParameters `json:"parameters"`
	NotifyEmail string                  `json:"notifyEmail"`
}

// AllocationProgress 为运行中的分配任务进度，存放在 redis 中
type AllocationProgress struct {
	RunID      string              `json:"runID"`
	Status     AllocationRunStatus `json:"status"`
	Generation int                 `json:"generation"`
	Fitness    []float64           `json:"fitness"`
}
