package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"quickbite/internal/auth"
	authapi "quickbite/internal/auth/api"
	authdb "quickbite/internal/auth/db"
	"quickbite/internal/config"
	"quickbite/internal/database"
	"quickbite/internal/delivery"
	deliveryapi "quickbite/internal/delivery/api"
	deliverydb "quickbite/internal/delivery/db"
	"quickbite/internal/group"
	groupapi "quickbite/internal/group/api"
	groupdb "quickbite/internal/group/db"
	"quickbite/internal/logger"
	"quickbite/internal/notify"
	"quickbite/internal/order"
	orderapi "quickbite/internal/order/api"
	orderdb "quickbite/internal/order/db"
	"quickbite/internal/payment"
	paymentapi "quickbite/internal/payment/api"
	"quickbite/internal/realtime"
	"quickbite/internal/wallet"
	walletapi "quickbite/internal/wallet/api"
	walletdb "quickbite/internal/wallet/db"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	log.Info("STARTUP", "Starting quickbite server")

	bunDB, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("STARTUP", fmt.Sprintf("Database: %v", err))
	}
	defer bunDB.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatal("STARTUP", fmt.Sprintf("Redis: %v", err))
	}
	cancel()
	defer redisClient.Close()

	var producer *notify.Producer
	if cfg.Kafka.Enabled {
		producer = notify.NewProducer(cfg.Kafka, log)
		defer producer.Close()
		if err := notify.EnsureTopics(cfg.Kafka, log); err != nil {
			log.Warn("STARTUP", fmt.Sprintf("Kafka topics: %v", err))
		}
	} else {
		log.Warn("STARTUP", "Kafka disabled, domain events will not be mirrored")
	}

	tokens := auth.NewTokenManager(cfg.JWT)
	hub := realtime.NewHub(log)

	settings, err := (&orderdb.DB{Bun: bunDB}).GetSettings(context.Background())
	if err != nil {
		log.Fatal("STARTUP", fmt.Sprintf("Settings: %v", err))
	}

	paystack := payment.NewPaystack(cfg.Paystack, log)
	walletLock := wallet.NewLock(redisClient)
	walletStore := &walletdb.DB{Bun: bunDB}
	walletSvc := wallet.NewService(walletStore, walletLock, paystack, hub, settings.CommissionRate, log)

	orderStore := &orderdb.DB{Bun: bunDB}
	orderSvc := order.NewService(orderStore, hub, walletSvc, publisherOrNil(producer), log)

	deliveryStore := &deliverydb.DB{Bun: bunDB}
	deliverySvc := delivery.NewService(deliveryStore, hub, deliveryPublisherOrNil(producer), log)

	groupStore := &groupdb.DB{Bun: bunDB}
	groupSvc := group.NewService(groupStore, hub, log)

	paymentSvc := payment.NewService(paystack, orderStore, walletSvc, hub, paymentPublisherOrNil(producer), log)

	userStore := &authdb.DB{Bun: bunDB}
	authHandler := &authapi.Handler{
		DB:     userStore,
		Tokens: tokens,
		OTP:    auth.NewSMTPSender(cfg.Email, log),
		Logger: log,
	}
	orderHandler := &orderapi.Handler{Service: orderSvc}
	deliveryHandler := &deliveryapi.Handler{Service: deliverySvc}
	groupHandler := &groupapi.Handler{Service: groupSvc, JoinBaseURL: cfg.CORS.AllowedOrigin}
	walletHandler := &walletapi.Handler{Service: walletSvc, Logger: log}
	paymentHandler := &paymentapi.Handler{Service: paymentSvc}
	wsHandler := &realtime.Handler{Hub: hub, Tokens: tokens, Logger: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORS.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/ws", wsHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/otp/request", authHandler.RequestOTP)
			r.Post("/otp/verify", authHandler.VerifyOTP)
			r.With(auth.Middleware(tokens)).Post("/push-token", authHandler.SetPushToken)
		})

		// Provider callbacks carry no bearer token.
		r.Post("/wallet/webhook", walletHandler.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(tokens))

			r.Post("/orders", orderHandler.Create)
			r.Get("/orders", orderHandler.ListMine)
			r.Get("/orders/{orderId}", orderHandler.Get)
			r.Patch("/orders/{orderId}/status", orderHandler.UpdateStatus)
			r.Get("/users/{userId}/orders", orderHandler.ListForUser)
			r.Get("/restaurants/{restaurantId}/orders", orderHandler.ListForRestaurant)

			r.Post("/delivery/accept", deliveryHandler.Accept)
			r.Get("/delivery/available", deliveryHandler.Available)
			r.Get("/delivery/orders/{driverId}", deliveryHandler.DriverOrders)
			r.Post("/delivery/location", deliveryHandler.UpdateLocation)
			r.Get("/delivery/location/{driverId}", deliveryHandler.GetLocation)

			r.Post("/group/create", groupHandler.Create)
			r.Post("/group/join", groupHandler.Join)
			r.Post("/group/add-item", groupHandler.AddItem)
			r.Get("/group/{groupId}", groupHandler.Get)
			r.Get("/group/{groupId}/qr", groupHandler.InviteQR)
			r.Post("/group/{groupId}/finalize", groupHandler.Finalize)

			r.Get("/wallet", walletHandler.Get)
			r.Get("/wallet/transactions", walletHandler.Transactions)
			r.Post("/wallet/withdraw", walletHandler.Withdraw)
			r.Post("/wallet/setup", walletHandler.Setup)

			r.Post("/payment/initialize", paymentHandler.Initialize)
			r.Get("/payment/verify/{reference}", paymentHandler.Verify)
		})
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("STARTUP", fmt.Sprintf("Listening on %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("Listen: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("SHUTDOWN", "Draining connections")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("SHUTDOWN", fmt.Sprintf("Forced shutdown: %v", err))
	}
	log.Info("SHUTDOWN", "Server stopped")
}

// The producer is optional; a nil interface keeps the services' publish
// paths quiet when kafka is disabled.
func publisherOrNil(p *notify.Producer) order.Publisher {
	if p == nil {
		return nil
	}
	return p
}

func deliveryPublisherOrNil(p *notify.Producer) delivery.Publisher {
	if p == nil {
		return nil
	}
	return p
}

func paymentPublisherOrNil(p *notify.Producer) payment.Publisher {
	if p == nil {
		return nil
	}
	return p
}
