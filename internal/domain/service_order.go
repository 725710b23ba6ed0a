package domain

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

type ServiceOrder struct {
	ID               string    `json:"id" yaml:"id"`
	Description      string    `json:"description" yaml:"description"`
	RequiredSkills   []Skill   `json:"requiredSkills" yaml:"requiredSkills"`
	EstimatedHours   int       `json:"estimatedHours" yaml:"estimatedHours"`
	Priority         Priority  `json:"priority" yaml:"priority"`
	ExpectedStartDay int       `json:"expectedStartDay" yaml:"expectedStartDay"`
	CreatedAt        time.Time `json:"createdAt" yaml:"-"`
	Version          int32     `json:"-" yaml:"-"`
}
