package utils

import (
	"fmt"
	"math/rand/v2"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "霞", "飞", "玲", "超",
	"华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌", "庆",
	"建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

var orderSubjects = []string{"厂房", "办公楼", "仓库", "宿舍", "配电房", "食堂", "车间", "机房"}

var skillNames = map[domain.Skill]string{
	domain.SkillPainting:   "刷漆",
	domain.SkillElectrical: "电路检修",
	domain.SkillMasonry:    "砌筑",
	domain.SkillPlumbing:   "管道维修",
	domain.SkillWelding:    "焊接",
}

func GenerateRandomChineseName(rng *rand.Rand) string {
	surname := commonSurnames[rng.IntN(len(commonSurnames))]
	nameLength := rng.IntN(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rng.IntN(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(rng *rand.Rand, chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rng.IntN(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rng.IntN(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rng.IntN(len(digits))])
	}

	return username
}

var roles = []domain.Role{
	domain.RoleDispatcher,
	domain.RoleAdmin,
}

func GenerateRandomUser(rng *rand.Rand, password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName(rng)
	username := GenerateUsernameFromChineseName(rng, fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         roles[rng.IntN(len(roles))],
		IsActive:     true,
	}

	return user, nil
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

// GenerateRandomPassword 使用全局的随机数生成器，它的种子来自操作系统
func GenerateRandomPassword(length int) string {
	randomPassword := make([]rune, length)
	for i := range randomPassword {
		randomPassword[i] = letters[rand.IntN(len(letters))]
	}
	return string(randomPassword)
}

// 从技能词表中不重复地随机选择 n 项
func randomSkills(rng *rand.Rand, n int) []domain.Skill {
	perm := rng.Perm(len(domain.Skills))
	skills := make([]domain.Skill, n)
	for i := range skills {
		skills[i] = domain.Skills[perm[i]]
	}
	return skills
}

// GenerateRandomOperator 生成第 index 个操作员（从 1 开始），掌握 2~3 项技能，每天工作 7~9 小时
func GenerateRandomOperator(rng *rand.Rand, index int) *domain.Operator {
	return &domain.Operator{
		ID:          fmt.Sprintf("OP%03d", index),
		FullName:    GenerateRandomChineseName(rng),
		Skills:      randomSkills(rng, rng.IntN(2)+2),
		Level:       domain.SkillLevels[rng.IntN(len(domain.SkillLevels))],
		Shift:       domain.Shifts[rng.IntN(len(domain.Shifts))],
		HoursPerDay: rng.IntN(3) + 7,
	}
}

// GenerateRandomServiceOrder 生成第 index 个工单（从 1 开始），需要 1~2 项技能，预计 2~8 小时
func GenerateRandomServiceOrder(rng *rand.Rand, index int, horizonDays int) *domain.ServiceOrder {
	skills := randomSkills(rng, rng.IntN(2)+1)

	description := orderSubjects[rng.IntN(len(orderSubjects))]
	for _, skill := range skills {
		description += skillNames[skill]
	}

	return &domain.ServiceOrder{
		ID:               fmt.Sprintf("SO%03d", index),
		Description:      description,
		RequiredSkills:   skills,
		EstimatedHours:   rng.IntN(7) + 2,
		Priority:         domain.Priorities[rng.IntN(len(domain.Priorities))],
		ExpectedStartDay: rng.IntN(horizonDays) + 1,
	}
}
