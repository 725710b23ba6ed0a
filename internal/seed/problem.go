package seed

import (
	"fmt"
	"io"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/utils"
	"gopkg.in/yaml.v3"
)

// ProblemFile 为离线分配使用的 YAML 文件
type ProblemFile struct {
	Parameters domain.AllocationRunParameters `yaml:"parameters"`
	Operators  []domain.Operator              `yaml:"operators"`
	Orders     []domain.ServiceOrder          `yaml:"orders"`
}

// ReadProblemYAML 读取问题文件，文件中没有给出的参数使用 defaults
func ReadProblemYAML(r io.Reader, defaults domain.AllocationRunParameters) (*ProblemFile, error) {
	problem := &ProblemFile{Parameters: defaults}

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(problem); err != nil {
		return nil, fmt.Errorf("无法解析问题文件: %w", err)
	}

	for i := range problem.Operators {
		if err := utils.ValidateOperator(&problem.Operators[i]); err != nil {
			return nil, err
		}
	}
	for i := range problem.Orders {
		order := &problem.Orders[i]
		if order.RequiredSkills == nil {
			order.RequiredSkills = []domain.Skill{}
		}
		if err := utils.ValidateServiceOrder(order); err != nil {
			return nil, err
		}
	}

	return problem, nil
}
