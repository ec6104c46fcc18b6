package alert

import (
	"bytes"
	"errors"
	"log/slog"
	"net/smtp"
	"testing"

	"github.com/soundprediction/minigraph/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubSendMail(t *testing.T, err error) *[]string {
	t.Helper()
	var sent []string
	orig := sendMail
	sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, addr+"|"+from+"|"+string(msg))
		return err
	}
	t.Cleanup(func() { sendMail = orig })
	return &sent
}

func TestEmailAlerter(t *testing.T) {
	cfg := config.AlertConfig{
		Enabled:  true,
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		From:     "minigraph@example.com",
		To:       []string{"ops@example.com", "dba@example.com"},
	}

	t.Run("sends", func(t *testing.T) {
		sent := stubSendMail(t, nil)
		require.NoError(t, NewEmailAlerter(cfg).Alert("Breaker open", "memgraph unreachable"))
		require.Len(t, *sent, 1)
		assert.Contains(t, (*sent)[0], "smtp.example.com:587|minigraph@example.com|")
		assert.Contains(t, (*sent)[0], "To: ops@example.com,dba@example.com\r\n")
		assert.Contains(t, (*sent)[0], "Subject: Breaker open\r\n")
	})

	t.Run("wraps send errors", func(t *testing.T) {
		stubSendMail(t, errors.New("dial tcp: refused"))
		err := NewEmailAlerter(cfg).Alert("s", "m")
		assert.ErrorContains(t, err, "failed to send alert email")
	})

	t.Run("disabled is silent", func(t *testing.T) {
		sent := stubSendMail(t, nil)
		disabled := cfg
		disabled.Enabled = false
		require.NoError(t, NewEmailAlerter(disabled).Alert("s", "m"))
		assert.Empty(t, *sent)
	})

	t.Run("requires recipients", func(t *testing.T) {
		stubSendMail(t, nil)
		noTo := cfg
		noTo.To = nil
		assert.Error(t, NewEmailAlerter(noTo).Alert("s", "m"))
	})
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	a := New(config.AlertConfig{}, logger)
	require.IsType(t, &LogAlerter{}, a)
	require.NoError(t, a.Alert("Circuit open", "too many failures"))
	assert.Contains(t, buf.String(), "Circuit open")

	assert.IsType(t, &EmailAlerter{}, New(config.AlertConfig{Enabled: true}, logger))
	assert.NoError(t, (&NoOpAlerter{}).Alert("a", "b"))
}
