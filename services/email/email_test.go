package emailsvc

import (
	"bytes"
	"context"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
)

var conf = &core.Config{AppName: "Admissions", FrontendBaseURL: "http://app.test"}

func TestConsoleService_SendMessages(t *testing.T) {
	var out bytes.Buffer
	svc := NewConsoleService(conf, &out)

	err := svc.SendMessages(context.Background(),
		&core.EmailMessage{
			To:      []mail.Address{{Name: "Jane", Address: "jane@example.com"}},
			Subject: "Hello",
			BodyStr: "plain body",
		},
		&core.EmailMessage{Subject: "nobody", BodyStr: "dropped"},
	)
	require.NoError(t, err)

	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "plain body", sent[0].TextContent)
	assert.Contains(t, out.String(), "Subject: [Admissions] Hello")
	assert.Contains(t, out.String(), `To: "Jane" <jane@example.com>`)
	assert.NotContains(t, out.String(), "text/html")
}

func TestConsoleService_Canceled(t *testing.T) {
	svc := NewConsoleService(conf, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := svc.SendMessages(ctx, &core.EmailMessage{To: []mail.Address{{Address: "a@b.c"}}, BodyStr: "x"})
	assert.Equal(t, context.Canceled, err)
	assert.Empty(t, svc.Sent())
}

func TestSendgridService_prepare(t *testing.T) {
	c := *conf
	c.SendgridApiKey = "key"
	svc := NewSendgridService(&c, nil)
	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Jane", Address: "jane@example.com"}},
		Cc:          []mail.Address{{Address: "boss@example.com"}},
		Subject:     "Leads past their SLA",
		TextContent: "text",
	})

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Admissions] Leads past their SLA", p.Subject)
	assert.Equal(t, "jane@example.com", p.To[0].Address)
	assert.Equal(t, "boss@example.com", p.CC[0].Address)
	require.Len(t, m.Content, 1, "no html part without html content")
	assert.Equal(t, "text/plain", m.Content[0].Type)
}

func TestNew(t *testing.T) {
	c := *conf
	c.Debug = true
	c.SendgridApiKey = "key"
	_, ok := New(&c, nil, nil).(*ConsoleService)
	assert.True(t, ok)

	c.Debug = false
	_, ok = New(&c, nil, nil).(*SendgridService)
	assert.True(t, ok)

	c.SendgridApiKey = ""
	_, ok = New(&c, nil, nil).(*ConsoleService)
	assert.True(t, ok)
}
