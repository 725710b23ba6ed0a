package domain

var skillLevelRanks = map[SkillLevel]int{
	SkillLevelJunior: 1,
	SkillLevelMid:    2,
	SkillLevelSenior: 3,
	SkillLevelExpert: 4,
}

var priorityRanks = map[Priority]int{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
	PriorityUrgent: 4,
}

// SkillLevelRank 返回技能等级的序数，无法识别的等级返回 0
func SkillLevelRank(level SkillLevel) int {
	return skillLevelRanks[level]
}

// PriorityRank 返回优先级的序数（1~4），无法识别的优先级返回 0
func PriorityRank(priority Priority) int {
	return priorityRanks[priority]
}

// MinimumSkillMatch 是操作员能够承接工单的最低技能覆盖率
const MinimumSkillMatch = 0.5

// SkillMatch 计算操作员技能对工单所需技能的覆盖率
// 所需技能为空时视为完全满足，返回 (true, 1.0)
func SkillMatch(operatorSkills []Skill, requiredSkills []Skill) (bool, float64) {
	required := make(map[Skill]struct{}, len(requiredSkills))
	for _, skill := range requiredSkills {
		required[skill] = struct{}{}
	}
	if len(required) == 0 {
		return true, 1.0
	}

	matched := make(map[Skill]struct{}, len(operatorSkills))
	for _, skill := range operatorSkills {
		if _, exists := required[skill]; exists {
			matched[skill] = struct{}{}
		}
	}

	fraction := float64(len(matched)) / float64(len(required))
	return fraction >= MinimumSkillMatch, fraction
}

// LevelFitsPriority 判断操作员等级是否适合工单优先级
// 高、紧急工单需要资深及以上，中等工单需要中级及以上，低优先级工单不限
func LevelFitsPriority(level SkillLevel, priority Priority) bool {
	rank := SkillLevelRank(level)
	switch priority {
	case PriorityHigh, PriorityUrgent:
		return rank >= SkillLevelRank(SkillLevelSenior)
	case PriorityMedium:
		return rank >= SkillLevelRank(SkillLevelMid)
	case PriorityLow:
		return rank >= SkillLevelRank(SkillLevelJunior)
	default:
		return false
	}
}
