package main

import (
	"fmt"
	"log"
	"os"

	"campusiq-chat/internal/chat"
	"campusiq-chat/internal/config"
	"campusiq-chat/internal/export"
	"campusiq-chat/internal/history"
	"campusiq-chat/internal/ragapi"
	"campusiq-chat/internal/session"
	"campusiq-chat/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "campusiq-chat:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}

	// The terminal belongs to the TUI; diagnostics go to a file.
	logFile, err := tea.LogToFile(cfg.LogPath, "campusiq")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	client := ragapi.New(cfg.BaseURL, cfg.Timeout)
	store := session.NewStore()

	opts := []chat.Option{chat.WithLogger(log.Printf)}
	if !cfg.NoHistory {
		hist, err := history.Open(cfg.HistoryPath)
		if err != nil {
			log.Printf("query history disabled: %v", err)
		} else {
			defer hist.Close()
			opts = append(opts, chat.WithRecorder(func(r chat.QueryRecord) {
				if err := hist.Record(history.Entry{
					AskedAt:     r.AskedAt,
					Question:    r.Question,
					OK:          r.OK,
					SourceCount: r.SourceCount,
					Elapsed:     r.Elapsed,
				}); err != nil {
					log.Printf("record query history: %v", err)
				}
			}))
		}
	}

	orch := chat.NewOrchestrator(store, client, cfg.TopK, opts...)
	stats := chat.NewStatsController(client)

	exporter, err := export.New(cfg.ExportDir)
	if err != nil {
		return err
	}

	m := ui.NewModel(cfg, store, orch, stats, client, exporter)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
