package services

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"lifeline/models"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeTwilio struct {
	messages []*twilioApi.CreateMessageParams
	calls    []*twilioApi.CreateCallParams
	err      error
}

func (f *fakeTwilio) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.messages = append(f.messages, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM0001"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func (f *fakeTwilio) CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "CA0001"
	return &twilioApi.ApiV2010Call{Sid: &sid}, nil
}

type fakePush struct {
	messages []*messaging.Message
}

func (f *fakePush) Send(ctx context.Context, message *messaging.Message) (string, error) {
	f.messages = append(f.messages, message)
	return "projects/x/messages/1", nil
}

func alertPayload() models.EmergencyPayload {
	started := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	return models.EmergencyPayload{
		Kind:      models.PayloadAlert,
		EpisodeID: "ep-1",
		UserID:    "user-1",
		UserName:  "Alex",
		StartedAt: started,
		Location:  testSample(started),
	}
}

func TestTwilioSenders(t *testing.T) {
	api := &fakeTwilio{}
	contact := newContact("Sam", true)
	contact.Phone = "(555) 123-4567"

	t.Run("sms", func(t *testing.T) {
		id, err := NewTwilioSMSSender(api, "+15550001111").Send(context.Background(), contact, alertPayload())
		require.NoError(t, err)
		assert.Equal(t, "SM0001", id)

		require.Len(t, api.messages, 1)
		msg := api.messages[0]
		assert.Equal(t, "+15550001111", *msg.From)
		assert.Contains(t, *msg.Body, "EMERGENCY: Alex needs help")
		assert.Contains(t, *msg.Body, "https://maps.google.com/?q=40.712800,-74.006000")
	})

	t.Run("call", func(t *testing.T) {
		id, err := NewTwilioCallSender(api, "+15550001111").Send(context.Background(), contact, alertPayload())
		require.NoError(t, err)
		assert.Equal(t, "CA0001", id)
		require.Len(t, api.calls, 1)
		assert.True(t, strings.HasPrefix(*api.calls[0].Twiml, "<Response><Say"))
	})

	t.Run("missing phone", func(t *testing.T) {
		_, err := NewTwilioSMSSender(api, "+1").Send(context.Background(), models.EmergencyContact{}, alertPayload())
		assert.ErrorIs(t, err, ErrMissingPhone)
	})

	t.Run("provider error", func(t *testing.T) {
		failing := &fakeTwilio{err: errors.New("21211 invalid number")}
		_, err := NewTwilioCallSender(failing, "+1").Send(context.Background(), contact, alertPayload())
		assert.ErrorContains(t, err, "21211")
	})
}

func TestFCMPushSender(t *testing.T) {
	client := &fakePush{}
	sender := NewFCMPushSender(client)

	_, err := sender.Send(context.Background(), newContact("no-app", false), alertPayload())
	assert.ErrorIs(t, err, ErrMissingDeviceToken)

	contact := newContact("app-user", false)
	contact.DeviceToken = "token-123"
	id, err := sender.Send(context.Background(), contact, alertPayload())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, client.messages, 1)
	msg := client.messages[0]
	assert.Equal(t, "token-123", msg.Token)
	assert.Equal(t, "high", msg.Android.Priority)
	assert.Equal(t, "ep-1", msg.Data["episodeId"])
	assert.Equal(t, "40.712800", msg.Data["latitude"])
}

func TestSMTPEmailSender(t *testing.T) {
	sender := NewSMTPEmailSender(SMTPConfig{Host: "smtp.example.com", Port: "587", From: "alerts@example.com"})
	var sentTo []string
	var body string
	sender.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.Equal(t, "smtp.example.com:587", addr)
		sentTo = to
		body = string(msg)
		return nil
	}

	contact := newContact("mail", false)
	_, err := sender.Send(context.Background(), contact, alertPayload())
	assert.ErrorIs(t, err, ErrMissingEmail)

	contact.Email = "mail@example.com"
	_, err = sender.Send(context.Background(), contact, alertPayload())
	require.NoError(t, err)
	assert.Equal(t, []string{"mail@example.com"}, sentTo)
	assert.Contains(t, body, "Subject: 🚨 EMERGENCY ALERT")
	assert.Contains(t, body, "Open map")

	t.Run("header values cannot add headers", func(t *testing.T) {
		contact.Email = "mail@example.com\r\nBcc: everyone@example.com"
		_, err := sender.Send(context.Background(), contact, alertPayload())
		require.NoError(t, err)
		assert.Equal(t, []string{"mail@example.comBcc: everyone@example.com"}, sentTo)
		assert.NotContains(t, body, "\r\nBcc:")

		msg := sender.buildMessage("a@example.com", "Alert\nX-Injected: 1", "<p>hi</p>")
		assert.NotContains(t, msg, "\nX-Injected")
		assert.Contains(t, msg, "Subject: AlertX-Injected: 1\r\n")
	})
}

func TestFormatTextMessage(t *testing.T) {
	t.Run("without location", func(t *testing.T) {
		p := alertPayload()
		p.Location = nil
		assert.Contains(t, FormatTextMessage(p), "Location unavailable")
	})

	t.Run("stand down", func(t *testing.T) {
		p := alertPayload()
		p.Kind = models.PayloadStandDown
		p.Reason = "pocket dial"
		msg := FormatTextMessage(p)
		assert.Contains(t, msg, "Alex has cancelled")
		assert.Contains(t, msg, "pocket dial")
	})

	t.Run("escapes voice text", func(t *testing.T) {
		p := alertPayload()
		p.UserName = "Tom & Jerry"
		assert.Contains(t, FormatVoiceTwiML(p), "Tom &amp; Jerry")
	})

	t.Run("caps length", func(t *testing.T) {
		p := alertPayload()
		p.Location.HumanReadableAddress = strings.Repeat("x", 1000)
		assert.LessOrEqual(t, len(FormatTextMessage(p)), maxSMSLength)
	})
}
