package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pediatric-assistant/internal/config"
	"pediatric-assistant/internal/core"
	"pediatric-assistant/internal/graph"
	"pediatric-assistant/internal/guides"
	httpserver "pediatric-assistant/internal/http"
	"pediatric-assistant/internal/llm"
	"pediatric-assistant/internal/logger"
	"pediatric-assistant/internal/memory"
	"pediatric-assistant/internal/safety"

	_ "github.com/lib/pq"
)

func main() {
	if err := config.LoadEnv(); err != nil && !errors.Is(err, config.ErrEnvFileNotFound) {
		panic(err)
	}

	log, err := logger.New(config.Get("LOG_LEVEL", "info"), config.Get("LOG_FORMAT", "json"), "pediatric-assistant")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dbURL := config.MustGet("DATABASE_URL")
	dbConn, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbConn.PingContext(pingCtx); err != nil {
		log.Fatal("failed to ping database", zap.Error(err))
	}
	if err := graph.Migrate(context.Background(), dbConn); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	store := graph.NewRepository(dbConn)
	notifier := graph.NewNotifier(dbConn, dbURL, config.Get("EMERGENCY_CHANNEL", "emergency_alerts"))

	// The memory backend is Redis when an address is configured,
	// in-process otherwise (dev mode).
	var mem memory.Store
	if addr := config.Get("REDIS_ADDR", ""); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.Get("REDIS_PASSWORD", ""),
			DB:       config.GetInt("REDIS_DB", 0),
		})
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Fatal("failed to ping redis", zap.Error(err))
		}
		mem = memory.NewRedisStore(client, config.GetInt("HISTORY_CAP", 200))
	} else {
		log.Warn("REDIS_ADDR not set, using in-process conversation memory")
		mem = memory.NewInMemoryStore()
	}

	rules, err := safety.LoadDefaultRules()
	if err != nil {
		log.Fatal("failed to load safety rules", zap.Error(err))
	}
	log.Info("safety rules loaded", zap.Int("version", rules.Version))
	guideLib, err := guides.LoadDefaultLibrary()
	if err != nil {
		log.Fatal("failed to load aftercare guides", zap.Error(err))
	}
	evaluator := safety.NewEvaluatorWithConfig(rules, safety.Config{
		CautionOnUnknownAllergies: config.GetBool("CAUTION_ON_UNKNOWN_ALLERGIES", true),
	})

	model := llm.NewOpenAIClient(
		config.MustGet("OPENAI_API_KEY"),
		config.Get("OPENAI_MODEL", ""),
		config.GetDuration("MODEL_TIMEOUT", 30*time.Second),
	)

	symptomWindow := config.GetDuration("SYMPTOM_WINDOW", 24*time.Hour)
	chatService := core.NewChatService(store, mem, model, evaluator, log, core.ChatConfig{
		MaxPromptLength: config.GetInt("MAX_PROMPT_LENGTH", 12000),
		HistoryLimit:    config.GetInt("HISTORY_LIMIT", 20),
		SymptomWindow:   symptomWindow,
		FetchTimeout:    config.GetDuration("FETCH_TIMEOUT", 5*time.Second),
		ModelOptions: llm.Options{
			Temperature:     0.2,
			MaxOutputTokens: config.GetInt("MAX_OUTPUT_TOKENS", 1024),
		},
	})

	srv := httpserver.NewServer(httpserver.Server{
		Graph:         store,
		Memory:        mem,
		Chat:          chatService,
		Safety:        evaluator,
		Notifier:      notifier,
		Alerts:        notifier,
		Guides:        guideLib,
		Log:           log,
		SymptomWindow: symptomWindow,
	})
	addr := ":" + config.Get("PORT", "8080")
	server := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	log.Info("listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}
