package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"chat-quality-go/internal/config"
	"chat-quality-go/internal/directory"
	"chat-quality-go/internal/logger"
	"chat-quality-go/internal/ocr"
	"chat-quality-go/internal/oracle"
	"chat-quality-go/internal/rubric"
	"chat-quality-go/internal/server"
	"chat-quality-go/internal/session"
	"chat-quality-go/internal/simla"
	"chat-quality-go/internal/transcript"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "chat-quality-go").Info("starting service")

	cfg := config.FromEnv()

	rb := rubric.Default()
	if cfg.RubricPath != "" {
		loaded, err := rubric.Load(cfg.RubricPath)
		if err != nil {
			log.WithError(err).Fatal("failed to load rubric")
		}
		rb = loaded
	}
	log.WithField("rubric_version", rb.Version).Info("rubric loaded")

	var roster []directory.RosterEntry
	if cfg.RosterPath != "" {
		loaded, err := directory.LoadRoster(cfg.RosterPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.WithField("path", cfg.RosterPath).Warn("no roster file, manager emails will be unresolved")
			} else {
				log.WithError(err).Fatal("failed to load roster")
			}
		} else {
			roster = loaded
			log.WithField("entries", len(roster)).Info("roster loaded")
		}
	}

	oracleClient := oracle.New(cfg.OracleURL, cfg.OracleKey, oracle.Options{
		Model: cfg.OracleModel,
		Mock:  cfg.MockOracle,
	})
	ocrClient := ocr.New(cfg.OCRURL, ocr.Options{Language: cfg.OCRLanguage, Mock: cfg.MockOCR})

	srv := server.New(server.Options{
		Store:     session.NewStore(),
		CredStore: session.NewCredStore(cfg.CredentialsPath),
		Roster:    roster,
		Rubric:    rb,
		Oracle:    oracleClient,
		Assembler: transcript.Assembler{OCR: ocrClient},
		NewAPI: func(creds session.Credentials) server.PlatformAPI {
			return simla.New(creds.BaseURL, creds.Token, nil)
		},
		ScoreDelay: cfg.ScoreDelay,
	})

	e := srv.Echo()
	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 120 * time.Second
	e.Server.IdleTimeout = 120 * time.Second

	addr := ":" + cfg.Port
	log.WithField("addr", addr).Info("listening")
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}
