package mailer

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"

	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var ErrUnsupportedType = errors.New("不支持的邮件类型")

// message 与 domain.MailMessage 的格式相同，Data 需要根据 Type 再次解析
type message struct {
	Type string          `json:"type"`
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

type Composer struct {
	from string
}

func NewComposer(from string) *Composer {
	return &Composer{from: from}
}

// Compose 将队列中的消息构建为邮件
func (c *Composer) Compose(body []byte) (*mail.Msg, error) {
	m := message{}
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("邮件信息反序列化失败: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(c.from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}

	// 根据邮件类型解析数据
	var (
		data    any
		name    string
		subject string
	)
	switch m.Type {
	case domain.MailTypeCreateUser:
		d := domain.CreateUserMailData{}
		if err := json.Unmarshal(m.Data, &d); err != nil {
			return nil, fmt.Errorf("邮件数据反序列化失败: %w", err)
		}
		data, name, subject = d, "create_user.html", "工单分配系统 - 账户信息"
	case domain.MailTypeAllocationFinished:
		d := domain.AllocationFinishedMailData{}
		if err := json.Unmarshal(m.Data, &d); err != nil {
			return nil, fmt.Errorf("邮件数据反序列化失败: %w", err)
		}
		data, name, subject = d, "allocation_finished.html", "工单分配系统 - 分配任务已结束"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, m.Type)
	}

	if err := msg.SetBodyHTMLTemplate(templates.Lookup(name), data); err != nil {
		return nil, fmt.Errorf("无法设置邮件正文: %w", err)
	}
	msg.Subject(subject)

	return msg, nil
}
