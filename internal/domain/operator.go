package domain

import "time"

type Skill string

const (
	SkillPainting   Skill = "painting"
	SkillElectrical Skill = "electrical"
	SkillMasonry    Skill = "masonry"
	SkillPlumbing   Skill = "plumbing"
	SkillWelding    Skill = "welding"
)

// Skills 为固定的技能词表
var Skills = []Skill{SkillPainting, SkillElectrical, SkillMasonry, SkillPlumbing, SkillWelding}

type SkillLevel string

const (
	SkillLevelJunior SkillLevel = "junior"
	SkillLevelMid    SkillLevel = "mid"
	SkillLevelSenior SkillLevel = "senior"
	SkillLevelExpert SkillLevel = "expert"
)

var SkillLevels = []SkillLevel{SkillLevelJunior, SkillLevelMid, SkillLevelSenior, SkillLevelExpert}

// Shift 仅作为展示信息，不参与约束
type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
	ShiftNight     Shift = "night"
)

var Shifts = []Shift{ShiftMorning, ShiftAfternoon, ShiftNight}

type Operator struct {
	ID          string     `json:"id" yaml:"id"`
	FullName    string     `json:"fullName" yaml:"fullName"`
	Skills      []Skill    `json:"skills" yaml:"skills"`
	Level       SkillLevel `json:"level" yaml:"level"`
	Shift       Shift      `json:"shift" yaml:"shift"`
	HoursPerDay int        `json:"hoursPerDay" yaml:"hoursPerDay"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"-"`
	Version     int32      `json:"-" yaml:"-"`
}
