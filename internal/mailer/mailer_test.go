package mailer

import (
	"bytes"
	"encoding/json"
	"mime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/order-allocator/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

func encode(t *testing.T, m domain.MailMessage) []byte {
	t.Helper()

	body, err := json.Marshal(m)
	require.NoError(t, err)
	return body
}

// subject 返回解码后的邮件主题，go-mail 保存的是 RFC 2047 编码后的形式
func subject(t *testing.T, msg *mail.Msg) string {
	t.Helper()

	values := msg.GetGenHeader(mail.HeaderSubject)
	require.Len(t, values, 1)
	decoded, err := new(mime.WordDecoder).DecodeHeader(values[0])
	require.NoError(t, err)
	return decoded
}

func TestComposeCreateUser(t *testing.T) {
	c := NewComposer("noreply@example.com")

	msg, err := c.Compose(encode(t, domain.MailMessage{
		Type: domain.MailTypeCreateUser,
		To:   "zhangsan@example.com",
		Data: domain.CreateUserMailData{FullName: "张三", Username: "zhangsan", Password: "s3cret-pass"},
	}))
	require.NoError(t, err)
	assert.Equal(t, "工单分配系统 - 账户信息", subject(t, msg))

	buf := bytes.Buffer{}
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "zhangsan@example.com")
}

func TestComposeAllocationFinished(t *testing.T) {
	c := NewComposer("noreply@example.com")

	msg, err := c.Compose(encode(t, domain.MailMessage{
		Type: domain.MailTypeAllocationFinished,
		To:   "dispatcher@example.com",
		Data: domain.AllocationFinishedMailData{RunID: "run-1", Status: "finished", Fitness: 42.5, Generations: 100},
	}))
	require.NoError(t, err)
	assert.Equal(t, "工单分配系统 - 分配任务已结束", subject(t, msg))
}

func TestComposeErrors(t *testing.T) {
	c := NewComposer("noreply@example.com")

	_, err := c.Compose([]byte("not json"))
	assert.Error(t, err)

	_, err = c.Compose(encode(t, domain.MailMessage{Type: "reset_password", To: "a@example.com"}))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = c.Compose(encode(t, domain.MailMessage{Type: domain.MailTypeCreateUser, To: "not an address"}))
	assert.Error(t, err)
}

func TestTemplatesRender(t *testing.T) {
	buf := bytes.Buffer{}
	require.NoError(t, templates.ExecuteTemplate(&buf, "create_user.html", domain.CreateUserMailData{Username: "lisi", Password: "p@ss"}))
	assert.Contains(t, buf.String(), "lisi")

	buf.Reset()
	require.NoError(t, templates.ExecuteTemplate(&buf, "allocation_finished.html", domain.AllocationFinishedMailData{
		RunID: "run-9", Status: "finished", Fitness: 12.345, AssignedOrders: 7,
	}))
	assert.Contains(t, buf.String(), "12.35")
	assert.Contains(t, buf.String(), "run-9")
}
