package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"codechat/internal/api"
	"codechat/internal/chat"
	"codechat/internal/config"
	"codechat/internal/creds"
	"codechat/internal/session"
	"codechat/internal/tui"
	"codechat/pkg/logger"
)

const version = "v1.0.0"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to the config file")
	flag.Parse()

	// Optional .env for local overrides; viper picks the values up via env.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	logger.Infof("codechat %s starting, backend=%s mode=%s", version, cfg.Server.BaseURL, cfg.Auth.Mode)

	store := creds.NewFileStore(cfg.State.Dir)
	client := api.New(cfg.Server.BaseURL, cfg.Server.Timeout, store)

	mode := session.ModeToken
	if cfg.Auth.Mode == "local" {
		mode = session.ModeLocal
	}
	mgr := session.NewManager(client, store, mode)

	gate := chat.NewGate(client)
	ctrl := chat.NewController(client, gate)

	m := tui.New(tui.Options{
		Manager:       mgr,
		Controller:    ctrl,
		Gate:          gate,
		Conversations: client,
		Version:       version,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
