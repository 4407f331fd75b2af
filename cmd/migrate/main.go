package main

import (
	"database/sql"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/ignite/campaign-engine/internal/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	dir := flag.String("dir", "migrations", "migrations directory")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("[Migrate] Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("[Migrate] Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("[Migrate] Failed to connect: %v", err)
	}

	entries, err := os.ReadDir(*dir)
	if err != nil {
		log.Fatalf("[Migrate] Failed to read migrations dir: %v", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		path := filepath.Join(*dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("[Migrate] Failed to read %s: %v", name, err)
		}
		log.Printf("[Migrate] Applying %s", name)
		if _, err := db.Exec(string(data)); err != nil {
			log.Fatalf("[Migrate] %s failed: %v", name, err)
		}
	}

	log.Printf("[Migrate] Applied %d migrations", len(files))
}
