package cli

import (
	"fmt"

	"github.com/lveselov/remedy/internal/ai"
	"github.com/lveselov/remedy/internal/config"
	"github.com/lveselov/remedy/internal/gitlab"
	"github.com/lveselov/remedy/internal/healing"
	"github.com/lveselov/remedy/internal/jenkins"
	"github.com/lveselov/remedy/internal/store"
	"github.com/lveselov/remedy/internal/web"
	"go.uber.org/zap"
)

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.Load(cfgPath)
	}
	return config.LoadDefault()
}

func openStore(cfg *config.Config) (*store.DB, error) {
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return db, nil
}

// services bundles everything a command may need once config and store are up.
type services struct {
	cfg          *config.Config
	db           *store.DB
	jenkins      *jenkins.Client
	orchestrator *healing.Orchestrator
}

func buildServices(log *zap.Logger) (*services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	db, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	scm := gitlab.New(cfg.GitLab.BaseURL, cfg.GitLab.Token, cfg.GitLab.Timeout)
	builds := jenkins.New(cfg.Jenkins.BaseURL, cfg.Jenkins.User, cfg.Jenkins.APIToken, cfg.Jenkins.Timeout)
	delegate := ai.New(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Temperature, cfg.AI.Timeout)

	orchestrator := healing.NewOrchestrator(
		db,
		web.TokenAuth{Token: cfg.Server.Token},
		healing.NewCollector(builds, scm),
		delegate,
		healing.NewPatcher(scm),
		healing.NewRebuilder(builds, 0, 0),
		db,
		db,
		log,
	)

	return &services{cfg: cfg, db: db, jenkins: builds, orchestrator: orchestrator}, nil
}
