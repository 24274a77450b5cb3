package config

import (
	"context"

	"lifeline/models"
	"lifeline/services"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	"google.golang.org/api/option"
)

// InitializeChannelSenders builds one sender per configured provider.
// Providers without credentials are left out and their channels report
// "not configured" at dispatch time.
func InitializeChannelSenders(cfg *Config) map[models.NotificationChannel]services.ChannelSender {
	senders := make(map[models.NotificationChannel]services.ChannelSender)

	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.TwilioAccountSID,
			Password: cfg.TwilioAuthToken,
		})
		senders[models.ChannelSMS] = services.NewTwilioSMSSender(client.Api, cfg.TwilioPhoneNumber)
		senders[models.ChannelCall] = services.NewTwilioCallSender(client.Api, cfg.TwilioPhoneNumber)
		logrus.Info("📞 Twilio SMS and voice channels enabled")
	} else {
		logrus.Warn("Twilio credentials not configured, sms and call channels disabled")
	}

	if cfg.FirebaseCredentials != "" {
		fcmClient, err := initializeFirebaseMessaging(cfg)
		if err != nil {
			logrus.Errorf("Failed to initialize Firebase: %v", err)
		} else {
			senders[models.ChannelPush] = services.NewFCMPushSender(fcmClient)
			logrus.Info("🔔 Firebase push channel enabled")
		}
	} else {
		logrus.Warn("Firebase credentials not configured, push channel disabled")
	}

	if cfg.SMTPHost != "" {
		senders[models.ChannelEmail] = services.NewSMTPEmailSender(services.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		logrus.Info("📧 SMTP email channel enabled")
	}

	return senders
}

func initializeFirebaseMessaging(cfg *Config) (*messaging.Client, error) {
	ctx := context.Background()
	opt := option.WithCredentialsFile(cfg.FirebaseCredentials)

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, err
	}
	return app.Messaging(ctx)
}
