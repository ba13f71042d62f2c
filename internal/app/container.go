package app

import (
	"context"
	"fmt"
	"time"

	"github.com/doeshing/chatwork/internal/application/relay"
	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/infrastructure/action"
	"github.com/doeshing/chatwork/internal/infrastructure/ai"
	"github.com/doeshing/chatwork/internal/infrastructure/config"
	"github.com/doeshing/chatwork/internal/infrastructure/conversation"
	"github.com/doeshing/chatwork/internal/infrastructure/dedup"
	"github.com/doeshing/chatwork/internal/infrastructure/feishu"
	"github.com/doeshing/chatwork/internal/infrastructure/history"
	"github.com/doeshing/chatwork/internal/infrastructure/security"
	"github.com/doeshing/chatwork/internal/infrastructure/server"
	"github.com/doeshing/chatwork/internal/pkg/logger"
	"github.com/doeshing/chatwork/internal/ports"
)

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config       domain.Config
	RelayService *relay.Service
	FeishuClient *feishu.Client
	Server       *server.Server
	Transcripts  ports.TranscriptStore
	Logger       ports.Logger

	zapLogger *logger.ZapLogger
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, verbose bool) (*Container, error) {
	cfgLoader := config.NewFileLoader("")
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	var log ports.Logger
	var zl *logger.ZapLogger
	zl, err = logger.NewZap(cfg.Server.Debug || verbose)
	if err != nil {
		log = logger.NewStd(verbose)
	} else {
		log = zl
	}

	guard := security.NewPolicyGuard(cfg.Security)
	runner := action.NewExecutor(guard, log)
	assistant := ai.NewCLI(cfg.Claude, log)

	var transcripts ports.TranscriptStore
	if cfg.History.Enabled {
		transcripts = history.NewSQLiteStore()
	}

	feishuClient := feishu.NewClient(cfg.Feishu, log)
	sink := feishu.NewCardSink(feishuClient, log, time.Duration(cfg.Stream.CallTimeoutSeconds)*time.Second)

	interval := domain.DefaultUpdateInterval
	if cfg.Stream.UpdateIntervalMS > 0 {
		interval = time.Duration(cfg.Stream.UpdateIntervalMS) * time.Millisecond
	}

	relayService := &relay.Service{
		Store:          conversation.NewStore(domain.SessionTurnCap),
		Assistant:      assistant,
		Surface:        sink,
		Parser:         action.NewParser(),
		Runner:         runner,
		Transcripts:    transcripts,
		Logger:         log,
		UpdateInterval: interval,
		AutoExecute:    cfg.Security.AutoExecute,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, relayService, feishuClient, dedup.NewRegistry(domain.DedupWindow), log)

	return &Container{
		Config:       cfg,
		RelayService: relayService,
		FeishuClient: feishuClient,
		Server:       srv,
		Transcripts:  transcripts,
		Logger:       log,
		zapLogger:    zl,
	}, nil
}

// Close flushes buffered log output.
func (c *Container) Close() {
	if c.zapLogger != nil {
		c.zapLogger.Sync()
	}
}
