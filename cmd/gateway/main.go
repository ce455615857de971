package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dorisgate.io/internal/auth"
	"dorisgate.io/internal/config"
	"dorisgate.io/internal/doris"
	"dorisgate.io/internal/httpapi"
	"dorisgate.io/internal/masking"
	"dorisgate.io/internal/obs"
	"dorisgate.io/internal/security"
	"dorisgate.io/internal/sqlguard"
)

var version = "0.3.0"

func main() {
	obs.Init()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Token store: Postgres when a DSN is configured, in-memory otherwise.
	var store auth.TokenStore
	var pgStore *auth.PostgresTokenStore
	if cfg.PGDSN != "" {
		pgStore, err = auth.OpenPostgresTokenStore(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open token store: %v", err)
		}
		store = pgStore
	} else {
		store = auth.NewMemoryTokenStore()
	}

	tokenManager := auth.NewTokenManager(store,
		auth.WithDefaultExpiry(time.Duration(cfg.TokenExpiryHours)*time.Hour),
		auth.WithSweepInterval(cfg.TokenSweepInterval),
	)

	authnOpts := []auth.AuthenticatorOption{
		auth.WithTokenManager(tokenManager),
	}
	var signer *auth.TokenSigner
	if cfg.TokenSecret != "" {
		signer, err = auth.NewTokenSigner(cfg.TokenSecret, "dorisgate")
		if err != nil {
			log.Fatalf("token signer: %v", err)
		}
		authnOpts = append(authnOpts, auth.WithTokenSigner(signer))
	}
	if cfg.DevCredentials {
		tokens, users, err := devCredentials()
		if err != nil {
			log.Fatalf("dev credentials: %v", err)
		}
		authnOpts = append(authnOpts, auth.WithStaticTokens(tokens), auth.WithBasicUsers(users))
		log.Println("WARNING: development credentials are enabled")
	}

	pool, err := doris.NewManager(cfg.Doris)
	if err != nil {
		log.Fatalf("doris pool: %v", err)
	}
	cache := doris.NewSessionCache(pool,
		doris.WithSystemCaching(cfg.CacheSystemSession),
		doris.WithUserCaching(cfg.CacheUserSession),
	)

	secOpts := []security.Option{
		security.WithAuthenticator(auth.NewAuthenticator(authnOpts...)),
		security.WithAuthorizer(auth.NewAuthorizer(cfg.SensitiveTables)),
		security.WithValidator(sqlguard.NewValidator(sqlguard.Config{
			BlockedKeywords: cfg.BlockedKeywords,
			SensitiveTables: cfg.SensitiveTables,
		})),
		security.WithMaskingEngine(masking.NewEngine(masking.WithEnabled(cfg.MaskingEnabled))),
		security.WithExecutor(doris.NewExecutor(pool, cache)),
		security.WithTokenManager(tokenManager),
	}
	if signer != nil {
		secOpts = append(secOpts, security.WithTokenSigner(signer))
	}
	sec := security.NewManager(secOpts...)

	api := httpapi.New(sec, httpapi.ReadyProbe{Pool: pool}, httpapi.Options{
		Version:            version,
		MaxResultRows:      cfg.MaxResultRows,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting dorisgate %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	cache.Clear()
	_ = pool.Close()
	tokenManager.Close()
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

// devCredentials builds the built-in development token and admin account.
func devCredentials() (map[string]auth.StaticToken, map[string]auth.BasicUser, error) {
	adminHash, err := auth.HashPassword("admin123")
	if err != nil {
		return nil, nil, err
	}
	tokens := map[string]auth.StaticToken{
		"valid_token_123": {
			UserID:        "test_user",
			Roles:         []string{auth.RoleDataAnalyst},
			Permissions:   []string{auth.PermReadData},
			SecurityLevel: auth.LevelInternal,
		},
	}
	users := map[string]auth.BasicUser{
		"admin": {
			UserID:        "admin_user",
			PasswordHash:  adminHash,
			Roles:         []string{auth.RoleDataAdmin},
			Permissions:   []string{auth.PermAdmin},
			SecurityLevel: auth.LevelSecret,
		},
	}
	return tokens, users, nil
}
