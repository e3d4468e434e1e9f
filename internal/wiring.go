package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"
	"google.golang.org/api/option"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/biography"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/chat"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/completion"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/metrics"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/models"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/noteservice"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/notify"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/ratelimit"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/sse"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/storage"
)

// newLogger builds the JSON logger. With a log file configured, output goes
// through a rotating lumberjack writer; the returned closer flushes it.
func newLogger(cfg ApplicationConfig, fallback io.Writer) (*slog.Logger, func() error, error) {
	out := fallback
	closer := func() error { return nil }
	if cfg.Log.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.Log.Path,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
		out = lj
		closer = lj.Close
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	return logger, closer, nil
}

// components is everything built from the configuration, shared by the HTTP
// server and the MCP command.
type components struct {
	metrics     *metrics.Metrics
	loader      *biography.Loader
	relay       *chat.Relay
	notes       *noteservice.Service
	broker      *sse.Broker
	chatLimiter *ratelimit.Limiter
	noteLimiter *ratelimit.Limiter

	closers []func() error
}

func (c *components) close(logger *slog.Logger) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

func build(ctx context.Context, cfg *Config, logger *slog.Logger) (*components, error) {
	c := &components{}
	if cfg.Metrics.Enabled {
		c.metrics = metrics.New()
	}

	c.loader = biography.New(
		biography.WithPaths(cfg.Biography.Paths...),
		biography.WithTTL(cfg.Biography.TTL),
		biography.WithFallback(cfg.Biography.Fallback),
		biography.WithLogger(logger),
	)

	provider, err := newProvider(ctx, cfg.Chat)
	if err != nil {
		return nil, fmt.Errorf("init completion provider: %w", err)
	}
	if provider == nil {
		logger.Warn("chat api key not configured, chat requests will fail")
	}
	c.relay = chat.NewRelay(provider, c.loader,
		chat.WithConfig(chat.Config{
			Persona:           cfg.Chat.Persona,
			ResumeURL:         cfg.Chat.ResumeURL,
			StreamMaxTokens:   cfg.Chat.StreamMaxTokens,
			StreamTemperature: cfg.Chat.StreamTemperature,
			AnswerMaxTokens:   cfg.Chat.AnswerMaxTokens,
			AnswerTemperature: cfg.Chat.AnswerTemperature,
			Timeout:           cfg.Chat.Timeout,
			ExposeDetails:     cfg.App.Development(),
		}),
		chat.WithLogger(logger),
		chat.WithMetrics(c.metrics),
	)

	limitStore, err := newLimitStore(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	if closer, ok := limitStore.(io.Closer); ok {
		c.closers = append(c.closers, closer.Close)
	}
	c.chatLimiter = ratelimit.New(limitStore, policy("chat", cfg.RateLimit.Chat), logger)
	c.noteLimiter = ratelimit.New(limitStore, policy("note", cfg.RateLimit.Note), logger)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		c.close(logger)
		return nil, fmt.Errorf("init note store: %w", err)
	}
	if store != nil {
		c.closers = append(c.closers, store.Close)
	} else {
		logger.Warn("note store not configured, note submissions will fail")
	}

	c.broker = sse.NewBroker(25*time.Second, sse.WithReplay(20))
	c.closers = append(c.closers, func() error { c.broker.Close(); return nil })

	tasks, err := sideTasks(ctx, cfg, c.broker, logger)
	if err != nil {
		c.close(logger)
		return nil, err
	}
	c.notes = noteservice.NewService(store,
		noteservice.WithSideTasks(tasks...),
		noteservice.WithLogger(logger),
		noteservice.WithMetrics(c.metrics),
		noteservice.WithTaskTimeout(cfg.Notify.Timeout),
	)
	return c, nil
}

func policy(name string, p PolicyConfig) ratelimit.Policy {
	return ratelimit.Policy{Name: name, Max: p.Max, Window: p.Window, RetryAfter: p.RetryAfter}
}

// newProvider returns nil when no credential is configured.
func newProvider(ctx context.Context, cfg ChatConfig) (completion.Provider, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case ProviderGemini:
		return completion.NewGemini(ctx, cfg.APIKey, cfg.Model)
	default:
		return completion.NewOpenAI(cfg.APIKey,
			completion.WithModel(cfg.Model),
			completion.WithBaseURL(cfg.BaseURL),
		), nil
	}
}

type redisLimitStore struct {
	*ratelimit.RedisStore
	client *redis.Client
}

func (s redisLimitStore) Close() error { return s.client.Close() }

func newLimitStore(cfg RateLimitConfig) (ratelimit.Store, error) {
	if cfg.Backend != BackendRedis {
		return ratelimit.NewMemoryStore(time.Minute), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return redisLimitStore{RedisStore: ratelimit.NewRedisStore(client, cfg.Redis.Prefix), client: client}, nil
}

// openStore returns a nil store when the selected driver lacks credentials.
func openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (storage.NoteStore, error) {
	switch cfg.Storage.Driver {
	case DriverSQLite:
		if cfg.Storage.SQLite.Path == "" {
			return nil, nil
		}
		if dir := filepath.Dir(cfg.Storage.SQLite.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return storage.OpenSQLite(cfg.Storage.SQLite.Path)
	case DriverSupabase:
		sb := cfg.Storage.Supabase
		if sb.URL == "" || sb.ServiceKey == "" {
			logger.Warn("supabase url or service key missing")
			return nil, nil
		}
		return storage.NewSupabase(sb.URL, sb.ServiceKey, sb.Table, &http.Client{Timeout: 15 * time.Second}), nil
	case DriverSheets:
		if !cfg.Sheets.Configured() {
			return nil, nil
		}
		return openSheets(ctx, cfg.Sheets)
	default:
		return nil, nil
	}
}

func openSheets(ctx context.Context, cfg SheetsConfig) (*storage.Sheets, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return storage.NewSheets(ctx, cfg.SheetID, cfg.RPS, opts...)
}

// sideTasks builds the best-effort effects run after every saved note.
func sideTasks(ctx context.Context, cfg *Config, broker *sse.Broker, logger *slog.Logger) ([]noteservice.SideTask, error) {
	var tasks []noteservice.SideTask
	// The admin feed is only served behind a token; without one nobody can
	// subscribe, so notes are not announced.
	if cfg.Auth.AuthEnabled() {
		tasks = append(tasks, notify.NewAnnounce(func(n models.Note) {
			broker.Publish(sse.Notice{Type: "note.created", Data: n})
		}))
	}
	if cfg.Notify.Email.Configured() {
		tasks = append(tasks, notify.NewEmail(cfg.Notify.Email.APIKey, cfg.Notify.Email.To, cfg.Notify.Email.From))
	} else {
		logger.Info("note email notifications disabled")
	}
	if cfg.Notify.MirrorSheets && cfg.Storage.Driver != DriverSheets && cfg.Sheets.Configured() {
		sh, err := openSheets(ctx, cfg.Sheets)
		if err != nil {
			return nil, fmt.Errorf("init sheets mirror: %w", err)
		}
		tasks = append(tasks, notify.NewMirror("sheets", sh))
	}
	return tasks, nil
}
