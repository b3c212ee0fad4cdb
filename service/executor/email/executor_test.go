package email

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/internal/googleauth"
	"github.com/taskvault/taskvault/model"
)

func TestRawMessage(t *testing.T) {
	raw := RawMessage("client@partner.example", "Re: Invoice", "On its way.")
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)

	text := string(decoded)
	assert.Contains(t, text, "To: client@partner.example\r\n")
	assert.Contains(t, text, "Subject: Re: Invoice\r\n")
	assert.Contains(t, text, "\r\n\r\nOn its way.")
}

func TestSubjectFor(t *testing.T) {
	task := model.New("mailbox", "fp", model.KindEmail, time.Now())
	task.Title = "Email: Invoice INV-42"
	task.Payload = model.Payload{Email: &model.EmailPayload{Subject: "Invoice INV-42"}}
	assert.Equal(t, "Re: Invoice INV-42", subjectFor(task))

	task.Payload.Email.Subject = "Re: Invoice INV-42"
	assert.Equal(t, "Re: Invoice INV-42", subjectFor(task))

	task.Payload.Email = nil
	assert.Equal(t, "Email: Invoice INV-42", subjectFor(task))
}

func TestExecuteRequiresRecipient(t *testing.T) {
	exec := New(googleauth.Credentials{})
	task := model.New("mailbox", "fp", model.KindEmail, time.Now())

	_, err := exec.Execute(context.Background(), task, model.ProposedAction{Category: "communication"})
	require.Error(t, err)
}
