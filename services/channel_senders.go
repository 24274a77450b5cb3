package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"lifeline/models"
	"lifeline/utils"

	"firebase.google.com/go/v4/messaging"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// =================== TWILIO ===================

// TwilioAPI is the subset of the Twilio REST client used for SMS and calls.
// *twilioApi.ApiService satisfies it.
type TwilioAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
	CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error)
}

type TwilioSMSSender struct {
	api  TwilioAPI
	from string
}

func NewTwilioSMSSender(api TwilioAPI, from string) *TwilioSMSSender {
	return &TwilioSMSSender{api: api, from: from}
}

func (s *TwilioSMSSender) Send(ctx context.Context, contact models.EmergencyContact, payload models.EmergencyPayload) (string, error) {
	if contact.Phone == "" {
		return "", ErrMissingPhone
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(utils.NormalizePhoneNumber(contact.Phone))
	params.SetFrom(s.from)
	params.SetBody(FormatTextMessage(payload))

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio sms to %s: %w", utils.MaskPhoneNumber(contact.Phone), err)
	}
	if resp != nil && resp.Sid != nil {
		return *resp.Sid, nil
	}
	return "", nil
}

type TwilioCallSender struct {
	api  TwilioAPI
	from string
}

func NewTwilioCallSender(api TwilioAPI, from string) *TwilioCallSender {
	return &TwilioCallSender{api: api, from: from}
}

func (s *TwilioCallSender) Send(ctx context.Context, contact models.EmergencyContact, payload models.EmergencyPayload) (string, error) {
	if contact.Phone == "" {
		return "", ErrMissingPhone
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(utils.NormalizePhoneNumber(contact.Phone))
	params.SetFrom(s.from)
	params.SetTwiml(FormatVoiceTwiML(payload))

	resp, err := s.api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("twilio call to %s: %w", utils.MaskPhoneNumber(contact.Phone), err)
	}
	if resp != nil && resp.Sid != nil {
		return *resp.Sid, nil
	}
	return "", nil
}

// =================== PUSH ===================

// PushClient is satisfied by *messaging.Client.
type PushClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FCMPushSender struct {
	client PushClient
}

func NewFCMPushSender(client PushClient) *FCMPushSender {
	return &FCMPushSender{client: client}
}

func (s *FCMPushSender) Send(ctx context.Context, contact models.EmergencyContact, payload models.EmergencyPayload) (string, error) {
	if contact.DeviceToken == "" {
		return "", ErrMissingDeviceToken
	}

	title := AlertTitle(payload)
	body := FormatTextMessage(payload)
	message := &messaging.Message{
		Token: contact.DeviceToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: PushData(payload),
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "emergency",
				Icon:      "ic_notification",
				Color:     "#FF0000",
				ChannelID: "emergency",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Sound: "emergency.caf",
				},
			},
		},
	}

	id, err := s.client.Send(ctx, message)
	if err != nil {
		return "", fmt.Errorf("fcm: %w", err)
	}
	return id, nil
}

// =================== EMAIL ===================

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type SMTPEmailSender struct {
	config   SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPEmailSender(config SMTPConfig) *SMTPEmailSender {
	return &SMTPEmailSender{config: config, sendMail: smtp.SendMail}
}

func (s *SMTPEmailSender) Send(ctx context.Context, contact models.EmergencyContact, payload models.EmergencyPayload) (string, error) {
	if contact.Email == "" {
		return "", ErrMissingEmail
	}

	to := headerValue(contact.Email)
	message := s.buildMessage(to, AlertTitle(payload), FormatEmailBody(payload))
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%s", s.config.Host, s.config.Port)

	if err := s.sendMail(addr, auth, s.config.From, []string{to}, []byte(message)); err != nil {
		return "", fmt.Errorf("smtp: %w", err)
	}
	return "", nil
}

func (s *SMTPEmailSender) buildMessage(to, subject, htmlBody string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", headerValue(s.config.From)))
	b.WriteString(fmt.Sprintf("To: %s\r\n", headerValue(to)))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", headerValue(subject)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return b.String()
}

var headerBreaks = strings.NewReplacer("\r", "", "\n", "")

// headerValue strips line breaks so a value cannot start a new header.
func headerValue(v string) string {
	return headerBreaks.Replace(v)
}
