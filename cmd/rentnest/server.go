package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rentnest/rentnest/internal/config"
	"github.com/rentnest/rentnest/internal/handlers"
	"github.com/rentnest/rentnest/internal/media"
	"github.com/rentnest/rentnest/internal/middleware"
	"github.com/rentnest/rentnest/internal/oauth"
	"github.com/rentnest/rentnest/internal/otp"
	"github.com/rentnest/rentnest/internal/payment"
	"github.com/rentnest/rentnest/internal/quota"
	"github.com/rentnest/rentnest/internal/repository"
	"github.com/rentnest/rentnest/internal/schedule"
	"github.com/rentnest/rentnest/internal/service"
	"github.com/rentnest/rentnest/internal/sms"
	"github.com/sirupsen/logrus"
)

func runServer(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dynamoClient, err := initDynamoDB(ctx, cfg, logger)
	if err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Endpoint,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.WithField("endpoint", cfg.Redis.Endpoint).Info("Redis client initialized")

	s3Client, err := media.NewS3Client(ctx, &cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3: %w", err)
	}

	// Repositories
	userRepo := repository.NewUserRepository(dynamoClient, cfg.DynamoDB.TableName, logger)
	propertyRepo := repository.NewPropertyRepository(dynamoClient, cfg.DynamoDB.TableName, logger)
	paymentRepo := repository.NewPaymentRepository(dynamoClient, cfg.DynamoDB.TableName, logger)

	// External providers
	smsClient := sms.NewClient(&cfg.SMS, logger)
	googleVerifier := oauth.NewGoogleVerifier(&cfg.Google)
	gateway := payment.NewGateway(&cfg.Payment)
	uploader := media.NewUploader(s3Client, &cfg.S3, logger)

	otpCfg := otp.DefaultConfig()
	otpCfg.CodeLength = cfg.OTP.Length
	otpCfg.TTL = cfg.OTP.Expiry
	otpCfg.MaxAttempts = cfg.OTP.MaxAttempts
	otpCfg.RateLimitMax = cfg.OTP.RateLimitMax
	otpCfg.RateLimitWindow = cfg.OTP.RateLimitWindow
	otpCfg.Cooldown = cfg.OTP.Cooldown
	otpCfg.Phone = otp.PhoneFormat{
		CountryCode:      cfg.OTP.CountryCode,
		SubscriberDigits: cfg.OTP.SubscriberDigits,
		AllowLeadingZero: cfg.OTP.AllowLeadingZero,
	}
	gatekeeper := otp.NewGatekeeper(otpCfg, smsClient, logger)

	tracker := quota.NewTracker(quota.Limits{
		quota.TierFree:    {ContactViews: cfg.Quota.FreeContactViews, Listings: cfg.Quota.FreeListings},
		quota.TierPremium: {ContactViews: cfg.Quota.PremiumContactViews, Listings: cfg.Quota.PremiumListings},
	}, nil)
	locks := quota.NewKeyedMutex()

	// Services
	jwtService, err := service.NewJWTService(&cfg.JWT, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	refreshTokenService := service.NewRefreshTokenService(redisClient, logger)
	authService := service.NewAuthService(userRepo, gatekeeper, googleVerifier, jwtService, refreshTokenService, locks, logger)
	userService := service.NewUserService(userRepo, tracker, locks, logger)
	propertyService := service.NewPropertyService(userRepo, propertyRepo, uploader, tracker, locks, cfg.S3.MaxFiles, logger)
	paymentService := service.NewPaymentService(userRepo, paymentRepo, gateway, locks, cfg.Payment.PremiumPrice, cfg.Payment.Currency, logger)

	router := handlers.NewRouter(handlers.Handlers{
		Auth:       handlers.NewAuthHandlers(authService, logger),
		Users:      handlers.NewUserHandlers(userService, logger),
		Properties: handlers.NewPropertyHandlers(propertyService, cfg.S3.MaxUploadBytes, cfg.S3.MaxFiles, logger),
		Payments:   handlers.NewPaymentHandlers(paymentService, logger),
	}, middleware.NewAuthMiddleware(jwtService, logger), cfg.Server.CORSOrigins, logger)

	scheduler := schedule.NewCronScheduler(logger)
	if err := scheduler.AddJob(schedule.NewSweepJob(gatekeeper, logger), schedule.Every(cfg.OTP.SweepInterval)); err != nil {
		return fmt.Errorf("failed to schedule OTP sweep: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

