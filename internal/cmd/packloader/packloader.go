// Package packloader imports track pack files into the game catalog.
package packloader

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Plabrum/trackstar/internal/game/domain"
	"github.com/Plabrum/trackstar/internal/game/storage"
	"github.com/Plabrum/trackstar/internal/game/storage/sqlite"
	"github.com/Plabrum/trackstar/internal/platform/cmd"
	"github.com/Plabrum/trackstar/internal/platform/id"
)

// Config holds packloader configuration.
type Config struct {
	DBPath string `env:"TRACKSTAR_DB_PATH" envDefault:"data/trackstar.db"`
	Files  []string
}

// packFile is the on-disk pack format.
type packFile struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Tracks      []trackFile `json:"tracks"`
}

type trackFile struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Popularity int    `json:"popularity"`
}

// ParseConfig loads env defaults and treats remaining args as pack files.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := cmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	if err := cmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Files = fs.Args()
	if len(cfg.Files) == 0 {
		return Config{}, fmt.Errorf("at least one pack file is required")
	}
	return cfg, nil
}

// Run imports every pack file into the catalog.
func Run(ctx context.Context, cfg Config) error {
	return cmd.RunWithTelemetry(ctx, cmd.ServicePackloader, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open game sqlite store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close game store: %v", err)
			}
		}()

		for _, file := range cfg.Files {
			pack, count, err := loadPack(ctx, store, file)
			if err != nil {
				return fmt.Errorf("load pack %s: %w", file, err)
			}
			log.Printf("loaded pack %s (%s) with %d tracks", pack.ID, pack.Name, count)
		}
		return nil
	})
}

// loadPack imports a single pack file in one transaction.
func loadPack(ctx context.Context, store storage.Store, path string) (domain.Pack, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Pack{}, 0, err
	}

	var file packFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return domain.Pack{}, 0, fmt.Errorf("parse pack file: %w", err)
	}
	if strings.TrimSpace(file.Name) == "" {
		return domain.Pack{}, 0, fmt.Errorf("pack name is required")
	}
	if len(file.Tracks) == 0 {
		return domain.Pack{}, 0, fmt.Errorf("pack has no tracks")
	}

	pack := domain.Pack{
		ID:          strings.TrimSpace(file.ID),
		Name:        file.Name,
		Description: file.Description,
	}
	if pack.ID == "" {
		pack.ID, err = id.NewID()
		if err != nil {
			return domain.Pack{}, 0, err
		}
	}

	err = store.InTx(ctx, func(tx storage.Store) error {
		if err := tx.PutPack(ctx, pack); err != nil {
			return err
		}
		for i, entry := range file.Tracks {
			trackID := strings.TrimSpace(entry.ID)
			if trackID == "" {
				generated, err := id.NewID()
				if err != nil {
					return err
				}
				trackID = generated
			}
			track := domain.Track{
				ID:         trackID,
				PackID:     pack.ID,
				Title:      strings.TrimSpace(entry.Title),
				Artist:     strings.TrimSpace(entry.Artist),
				Popularity: entry.Popularity,
			}
			if track.Title == "" || track.Artist == "" {
				return fmt.Errorf("track %d is missing title or artist", i)
			}
			if err := tx.PutTrack(ctx, track); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Pack{}, 0, err
	}
	return pack, len(file.Tracks), nil
}
