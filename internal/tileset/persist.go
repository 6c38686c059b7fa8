package tileset

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/lawnchairsociety/mapforge/internal/database"
	"github.com/lawnchairsociety/mapforge/internal/logger"
	"github.com/lawnchairsociety/mapforge/internal/storage"
	"github.com/lawnchairsociety/mapforge/internal/wang"
)

// SheetFile is the name of the optional downloaded sprite sheet.
const SheetFile = "tileset.png"

// DirName returns the directory name a tileset persists under: the first
// 8 characters of its id.
func DirName(tilesetID string) string {
	name := strings.NewReplacer("/", "_", `\`, "_").Replace(tilesetID)
	if len(name) > 8 {
		name = name[:8]
	}
	return name
}

// Persist writes res's 16 tiles and metadata to targetDir, replacing any
// previous contents in one step. An empty targetDir means
// AssetsDir/DirName(id). The sprite sheet is downloaded when the result
// has one and a Downloader is configured.
func (m *Manager) Persist(ctx context.Context, res *Result, targetDir string) (string, error) {
	if res == nil || res.Status != StatusCompleted {
		return "", ErrNotCompleted
	}
	if len(res.Tiles) != wang.TileCount {
		return "", fmt.Errorf("%w: tileset %s has %d tiles", wang.ErrIncompleteTileset, res.TilesetID, len(res.Tiles))
	}
	if targetDir == "" {
		targetDir = filepath.Join(m.cfg.AssetsDir, DirName(res.TilesetID))
	}
	log := logger.With("tileset_id", res.TilesetID, "dir", targetDir)

	// Every tile must decode before the target is replaced.
	images := make([]image.Image, wang.TileCount)
	var g errgroup.Group
	for i, data := range res.Tiles {
		g.Go(func() error {
			img, err := imaging.Decode(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("decode tile %d of %s: %w", i, res.TilesetID, err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var sheet []byte
	if res.PNGURL != "" && m.cfg.Downloader != nil {
		data, err := m.cfg.Downloader.Download(ctx, res.PNGURL)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			log.Warn("Skipping tileset sheet", "url", res.PNGURL, "error", err)
		} else {
			sheet = data
		}
	}

	md := &wang.Metadata{
		TilesetID:        res.TilesetID,
		LowerBaseTileID:  res.LowerBaseTileID,
		UpperBaseTileID:  res.UpperBaseTileID,
		LowerDescription: res.LowerDescription,
		UpperDescription: res.UpperDescription,
		TileSize:         images[0].Bounds().Dx(),
		TileCount:        wang.TileCount,
		SavedAt:          time.Now().UTC(),
		Digests:          make(map[string]string, wang.TileCount),
	}
	for i, data := range res.Tiles {
		md.Digests[wang.TileFileName(i)] = wang.Digest(data)
	}

	err := storage.ReplaceDir(targetDir, func(dir string) error {
		var g errgroup.Group
		for i, data := range res.Tiles {
			g.Go(func() error {
				return writeBytes(filepath.Join(dir, wang.TileFileName(i)), data)
			})
		}
		if sheet != nil {
			g.Go(func() error {
				return writeBytes(filepath.Join(dir, SheetFile), sheet)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		encoded, err := md.Encode()
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		return writeBytes(filepath.Join(dir, wang.MetadataFile), encoded)
	})
	if err != nil {
		return "", fmt.Errorf("persist tileset %s: %w", res.TilesetID, err)
	}

	res.LocalPath = targetDir
	log.Info("Persisted tileset", "tile_size", md.TileSize, "sheet", sheet != nil)

	m.journalUpdate(ctx, res.TilesetID, func(rec *database.JobRecord) {
		rec.Status = StatusCompleted
		rec.LocalPath = targetDir
	})

	if m.cfg.Mirror != nil {
		n, err := m.cfg.Mirror.MirrorDir(ctx, targetDir)
		if err != nil {
			log.Warn("Failed to mirror tileset", "uploaded", n, "error", err)
		} else {
			log.Debug("Mirrored tileset", "files", n)
		}
	}
	return targetDir, nil
}

func writeBytes(path string, data []byte) error {
	return storage.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// ListLocal returns the metadata of every tileset persisted directly under
// assetsDir. Directories without readable metadata are skipped. A missing
// assetsDir yields an empty list.
func ListLocal(assetsDir string) ([]wang.Metadata, error) {
	entries, err := os.ReadDir(assetsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list tilesets in %s: %w", assetsDir, err)
	}

	var out []wang.Metadata
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(assetsDir, e.Name())
		md, err := wang.ReadMetadata(dir)
		if err != nil {
			logger.Debug("Skipping directory without tileset metadata", "dir", dir, "error", err)
			continue
		}
		out = append(out, *md)
	}
	return out, nil
}
