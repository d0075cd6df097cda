package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/bookease/libs/config"
	"github.com/md-rashed-zaman/bookease/libs/httpx"
	"github.com/md-rashed-zaman/bookease/libs/kafkax"
	otelx "github.com/md-rashed-zaman/bookease/libs/otel"
	"github.com/md-rashed-zaman/bookease/libs/runtime"
	"github.com/md-rashed-zaman/bookease/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/bookease/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/bookease/services/notification-service/internal/inbox"
	"github.com/md-rashed-zaman/bookease/services/notification-service/internal/notify"
	"github.com/md-rashed-zaman/bookease/services/notification-service/internal/sms"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		slog.Error("dotenv load failed", "err", err)
		os.Exit(1)
	}
	service := config.String("SERVICE_NAME", "notification-service")
	logger := runtime.NewLogger(service)
	if err := run(service, logger); err != nil {
		logger.Error("notification-service exited", "err", err)
		os.Exit(1)
	}
}

func newEmailSender() (email.Sender, error) {
	switch provider := strings.ToLower(config.String("EMAIL_PROVIDER", "smtp")); provider {
	case "smtp":
		return email.NewSMTPSender(
			config.String("SMTP_HOST", "mailpit"),
			config.String("SMTP_PORT", "1025"),
			config.String("SMTP_FROM", "no-reply@bookease.local"),
		), nil
	case "sendgrid":
		return email.NewSendGridSender(
			config.String("SENDGRID_API_KEY", ""),
			config.String("SENDGRID_FROM_EMAIL", ""),
			config.String("SENDGRID_FROM_NAME", "BookEase"),
		)
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", provider)
	}
}

// newSMSSender returns nil when texts are disabled.
func newSMSSender(logger *slog.Logger) (sms.Sender, error) {
	switch provider := strings.ToLower(config.String("SMS_PROVIDER", "none")); provider {
	case "none", "":
		return nil, nil
	case "log":
		return sms.NewLogSender(logger), nil
	case "webhook":
		return sms.NewWebhookSender(config.String("SMS_WEBHOOK_URL", ""), config.String("SMS_WEBHOOK_TOKEN", "")), nil
	case "twilio":
		s, err := sms.NewTwilioSender(
			config.String("TWILIO_ACCOUNT_SID", ""),
			config.String("TWILIO_AUTH_TOKEN", ""),
			config.String("TWILIO_FROM_NUMBER", ""),
		)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown SMS_PROVIDER %q", provider)
	}
}

func run(service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "8085")
	if err != nil {
		return err
	}
	inboxTTL, err := config.Duration("INBOX_TTL", 72*time.Hour)
	if err != nil {
		return err
	}
	redisURL, err := config.RequiredString("REDIS_URL")
	if err != nil {
		return err
	}
	brokers := config.String("KAFKA_BROKERS", "")

	emailSender, err := newEmailSender()
	if err != nil {
		return err
	}
	smsSender, err := newSMSSender(logger)
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()
	seen := inbox.New(rdb, inboxTTL, "bookease:notify:")

	topics := config.List("KAFKA_CONSUME_TOPICS")
	if len(topics) == 0 {
		topics = []string{notify.TopicBookingConfirmed, notify.TopicBookingCancelled}
	}
	checks := []runtime.ReadyCheck{{Name: "redis", Check: seen.Ping}}
	notifier := notify.NewNotifier(emailSender, smsSender, logger)
	if len(kafkax.SplitBrokers(brokers)) == 0 {
		logger.Warn("notification consumer disabled (no kafka brokers configured)")
	} else {
		eventConsumer := consumer.New(logger, seen, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topics:  topics,
		}, notifier.Handle)
		go eventConsumer.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return runtime.ServeHTTP(ctx, srv, logger, 10*time.Second)
}
