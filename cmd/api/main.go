package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-marketplace-api/internal/application/otp"
	"github.com/go-marketplace-api/internal/application/upload"
	"github.com/go-marketplace-api/internal/config"
	"github.com/go-marketplace-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-marketplace-api/internal/infrastructure/jwt"
	"github.com/go-marketplace-api/internal/infrastructure/memory"
	redisinfra "github.com/go-marketplace-api/internal/infrastructure/redis"
	s3infra "github.com/go-marketplace-api/internal/infrastructure/s3"
	"github.com/go-marketplace-api/internal/infrastructure/smtp"
	"github.com/go-marketplace-api/internal/infrastructure/sns"
	"github.com/go-marketplace-api/internal/pkg/ratelimit"
	transporthttp "github.com/go-marketplace-api/internal/transport/http"
	"github.com/go-marketplace-api/internal/transport/http/handler"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()

	// Upload records always live in DynamoDB; OTP codes only when OTP_STORE=dynamo.
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("dynamodb: %v", err)
	}
	if err := dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables); err != nil {
		log.Fatalf("dynamodb bootstrap: %v", err)
	}
	probes := map[string]handler.Probe{
		"dynamo": dynamo.Probe(dynamoClient, cfg.DynamoTables.Uploads),
	}

	var closers []func()
	var otpStore otp.Store
	switch cfg.OTPStore {
	case config.OTPStoreRedis:
		client, err := redisinfra.Connect(ctx, cfg)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		probes["redis"] = redisinfra.Probe(client)
		otpStore = redisinfra.NewOTPStore(client)
	case config.OTPStoreDynamo:
		probes["dynamo"] = dynamo.Probe(dynamoClient, cfg.DynamoTables.Uploads, cfg.DynamoTables.OTPCodes)
		otpStore = dynamo.NewOTPStore(dynamoClient, cfg.DynamoTables.OTPCodes)
	default:
		mem := memory.NewOTPStore()
		closers = append(closers, mem.Close)
		otpStore = mem
	}
	log.Printf("OTP store: %s", cfg.OTPStore)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("JWT provider: %v", err)
	}

	// SNS sender only when SMS delivery is enabled; nil means phone codes are not sent.
	var smsSender otp.SMSSender
	if cfg.SMSMode == config.SMSModeSNS {
		sender, err := sns.NewSender(ctx, cfg)
		if err != nil {
			log.Fatalf("SNS sender: %v", err)
		}
		smsSender = sender
	} else {
		log.Println("WARN: SMS_MODE=disabled, phone codes are stored but not delivered")
	}

	issueLimiter := ratelimit.PerMinute(cfg.OTPIssuePerMinute, cfg.OTPIssueBurst)
	// 5 requests/second, burst of 10 per client IP on the public OTP endpoints.
	ipLimiter := ratelimit.New(rate.Limit(5), 10)
	closers = append(closers, issueLimiter.Close, ipLimiter.Close)

	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:           otpStore,
		Mailer:          smtp.NewMailer(cfg),
		SMSSender:       smsSender,
		Limiter:         issueLimiter,
		TTL:             cfg.OTPTTL,
		MaxAttempts:     cfg.OTPMaxAttempts,
		DeliveryTimeout: cfg.DeliveryTimeout,
	})

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("s3: %v", err)
	}
	s3Store := s3infra.NewStore(s3Client, cfg.S3BucketPrefix, cfg.StoragePublicBaseURL)
	uploadSvc := upload.NewService(upload.ServiceDeps{
		Store:       s3Store,
		Records:     dynamo.NewUploadRepo(dynamoClient, cfg.DynamoTables.Uploads),
		URLTTL:      cfg.UploadURLTTL,
		MaxFileSize: cfg.UploadMaxFileSize,
		PageSize:    cfg.StorageListPageSize,
		Timeout:     cfg.StorageTimeout,
	})

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		OTP:           otpSvc,
		Uploads:       uploadSvc,
		Sessions:      jwtProvider,
		PublicLimiter: ipLimiter,
		Probes:        probes,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	for _, c := range closers {
		c()
	}
	log.Println("Server stopped")
}
