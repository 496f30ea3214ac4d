package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kballard/go-shellquote"

	"podforge/internal/app"
	"podforge/internal/config"
	"podforge/internal/logging"
	"podforge/internal/repl"
	"podforge/internal/storage"
)

func main() {
	exportEpisode := flag.String("export", "", "export a render plan for the given episode ID and exit (requires -out)")
	exportOut := flag.String("out", "", "output file for -export")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	home, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("failed to resolve home directory: %v", err)
	}

	baseDir := filepath.Join(home, ".podforge")
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		log.Fatalf("failed to create config directory: %v", err)
	}

	logPath := filepath.Join(baseDir, "podforge.log")
	logging.Configure(logPath)

	configPath := filepath.Join(baseDir, "config.yaml")
	cfg, err := config.Ensure(ctx, configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	dbPath := filepath.Join(baseDir, "app.db")
	db, err := storage.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	application := app.New(cfg, configPath, db)
	defer application.Close()

	if *exportEpisode != "" {
		if *exportOut == "" {
			fmt.Fprintln(os.Stderr, "error: -export requires -out <file>")
			os.Exit(1)
		}
		input := shellquote.Join("export", *exportEpisode, *exportOut)
		result, err := application.Execute(ctx, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error exporting render plan: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stdout, result.Message)
		return
	}

	if err := repl.Run(ctx, application); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
