// Package forge is the session object behind the mapforge commands. It
// wires the generator client, job journal, storage mirror, tileset cache,
// assembler and region service together and exposes the end-to-end
// workflows.
package forge

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/lawnchairsociety/mapforge/internal/assembler"
	"github.com/lawnchairsociety/mapforge/internal/config"
	"github.com/lawnchairsociety/mapforge/internal/database"
	"github.com/lawnchairsociety/mapforge/internal/logger"
	"github.com/lawnchairsociety/mapforge/internal/pixellab"
	"github.com/lawnchairsociety/mapforge/internal/region"
	"github.com/lawnchairsociety/mapforge/internal/storage"
	"github.com/lawnchairsociety/mapforge/internal/tileset"
	"github.com/lawnchairsociety/mapforge/internal/wang"
)

// ErrTilesetNotFound is returned when an id or path names no local tileset.
var ErrTilesetNotFound = errors.New("forge: tileset not found")

// Deps are the collaborators a Forge runs against. Tilesets and Images are
// required; the rest are optional.
type Deps struct {
	Tilesets   tileset.Generator
	Downloader tileset.Downloader
	Images     region.Generator
	Journal    *database.Database
	Mirror     *storage.Mirror
}

// Forge runs mapforge workflows. Its methods are safe for concurrent use.
type Forge struct {
	cfg      *config.Config
	tilesets *tileset.Manager
	regions  *region.Service
	journal  *database.Database
	mirror   *storage.Mirror
	cache    *ristretto.Cache[string, *wang.Tileset]

	mu        sync.Mutex
	assembler *assembler.Assembler
}

// New builds a Forge from cfg and deps.
func New(cfg *config.Config, deps Deps) (*Forge, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if deps.Tilesets == nil || deps.Images == nil {
		return nil, fmt.Errorf("forge: tileset and image generators are required")
	}

	tcfg := tileset.Config{
		AssetsDir:  cfg.Assets.TilesetsDir,
		MaxWait:    cfg.Poll.MaxWait,
		Interval:   cfg.Poll.Interval,
		Downloader: deps.Downloader,
	}
	if deps.Journal != nil {
		tcfg.Store = deps.Journal
	}
	if deps.Mirror != nil {
		tcfg.Mirror = deps.Mirror
	}

	seed := cfg.Map.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	f := &Forge{
		cfg:       cfg,
		tilesets:  tileset.NewManager(deps.Tilesets, tcfg),
		regions:   region.NewService(deps.Images, pixellab.Options{}),
		journal:   deps.Journal,
		mirror:    deps.Mirror,
		assembler: assembler.New(cfg.Assets.MapsDir, seed),
	}

	if cfg.Cache.Enabled && cfg.Cache.MaxTilesets > 0 {
		// Each tileset costs 1, so MaxCost is a tileset count.
		cache, err := ristretto.NewCache[string, *wang.Tileset](&ristretto.Config[string, *wang.Tileset]{
			NumCounters:        cfg.Cache.MaxTilesets * 10,
			MaxCost:            cfg.Cache.MaxTilesets,
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			return nil, fmt.Errorf("create tileset cache: %w", err)
		}
		f.cache = cache
	}
	return f, nil
}

// Open builds a Forge against the PixelLab API, opening the journal and
// mirror the config enables.
func Open(ctx context.Context, cfg *config.Config) (*Forge, error) {
	client := pixellab.NewClient(cfg.API)
	deps := Deps{Tilesets: client, Downloader: client, Images: client}

	if cfg.Journal.Enabled {
		db, err := database.OpenWithConfig(cfg.Journal.Config)
		if err != nil {
			return nil, fmt.Errorf("open job journal: %w", err)
		}
		deps.Journal = db
	}

	if cfg.Storage.Enabled {
		mirror, err := storage.NewMirror(ctx, cfg.Storage)
		if err == nil {
			err = mirror.EnsureBucket(ctx)
		}
		if err != nil {
			if deps.Journal != nil {
				deps.Journal.Close()
			}
			return nil, fmt.Errorf("open storage mirror: %w", err)
		}
		deps.Mirror = mirror
	}

	f, err := New(cfg, deps)
	if err != nil {
		if deps.Journal != nil {
			deps.Journal.Close()
		}
		return nil, err
	}
	logger.Debug("Forge ready",
		"journal", deps.Journal != nil,
		"mirror", deps.Mirror != nil,
		"cache", f.cache != nil)
	return f, nil
}

// Close releases the journal and cache.
func (f *Forge) Close() error {
	if f.cache != nil {
		f.cache.Close()
	}
	if f.journal != nil {
		return f.journal.Close()
	}
	return nil
}

// Config returns the configuration the Forge was built with.
func (f *Forge) Config() *config.Config {
	return f.cfg
}

// CreateTileset generates one tileset, waits for it and persists it.
func (f *Forge) CreateTileset(ctx context.Context, req tileset.Request) (*tileset.Result, error) {
	job, err := f.tilesets.CreateTileset(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := f.tilesets.PollUntilComplete(ctx, job.ID, 0, 0)
	if err != nil {
		return nil, err
	}
	if _, err := f.persist(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// CreateTilesetChain generates an anchor-linked chain and persists every
// completed tileset. After a failed step the persisted prefix is returned
// with the chain error.
func (f *Forge) CreateTilesetChain(ctx context.Context, terrains []string, transitionSize float64, tileSize int, opts pixellab.Options) ([]*tileset.Result, error) {
	results, chainErr := f.tilesets.CreateChain(ctx, terrains, transitionSize, tileSize, opts)
	for _, res := range results {
		if _, err := f.persist(ctx, res); err != nil {
			return results, errors.Join(err, chainErr)
		}
	}
	return results, chainErr
}

// ResumeTileset re-polls a journaled job and persists it on completion.
func (f *Forge) ResumeTileset(ctx context.Context, jobID string) (*tileset.Result, error) {
	res, err := f.tilesets.Resume(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if _, err := f.persist(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// ResumePending resumes every journaled job still pending, in journal
// order. Jobs that fail are reported together after the rest have run.
func (f *Forge) ResumePending(ctx context.Context) ([]*tileset.Result, error) {
	pending, err := f.tilesets.Pending(ctx)
	if err != nil {
		return nil, err
	}

	var (
		results []*tileset.Result
		errs    []error
	)
	for _, job := range pending {
		res, err := f.ResumeTileset(ctx, job.JobID)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			if ctx.Err() != nil {
				return results, err
			}
			errs = append(errs, fmt.Errorf("job %s: %w", job.JobID, err))
		}
	}
	return results, errors.Join(errs...)
}

// Jobs lists journaled jobs with the given status, or all jobs.
func (f *Forge) Jobs(ctx context.Context, status string) ([]*database.JobRecord, error) {
	return f.tilesets.Jobs(ctx, status)
}

// ChainJobs lists the journaled jobs of one chain in step order.
func (f *Forge) ChainJobs(ctx context.Context, chainID string) ([]*database.JobRecord, error) {
	return f.tilesets.ChainJobs(ctx, chainID)
}

func (f *Forge) persist(ctx context.Context, res *tileset.Result) (string, error) {
	dir, err := f.tilesets.Persist(ctx, res, "")
	if err != nil {
		return "", err
	}
	f.forget(dir)
	return dir, nil
}

// ListTilesets returns the metadata of every locally persisted tileset.
func (f *Forge) ListTilesets() ([]wang.Metadata, error) {
	return tileset.ListLocal(f.cfg.Assets.TilesetsDir)
}

// TilesetDir resolves a tileset id, id prefix or directory path to the
// directory holding it.
func (f *Forge) TilesetDir(idOrPath string) (string, error) {
	if idOrPath == "" {
		return "", fmt.Errorf("%w: empty id", ErrTilesetNotFound)
	}
	if isTilesetDir(idOrPath) {
		return idOrPath, nil
	}

	dir := filepath.Join(f.cfg.Assets.TilesetsDir, tileset.DirName(idOrPath))
	if isTilesetDir(dir) {
		return dir, nil
	}

	list, err := f.ListTilesets()
	if err != nil {
		return "", err
	}
	for _, md := range list {
		if md.TilesetID == idOrPath || strings.HasPrefix(md.TilesetID, idOrPath) {
			return md.Dir, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrTilesetNotFound, idOrPath)
}

func isTilesetDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, wang.MetadataFile))
	return err == nil && !info.IsDir()
}

// LoadTileset resolves idOrPath and loads the tileset, serving repeat
// loads from the cache.
func (f *Forge) LoadTileset(idOrPath string) (*wang.Tileset, error) {
	dir, err := f.TilesetDir(idOrPath)
	if err != nil {
		return nil, err
	}
	key := cacheKey(dir)

	if f.cache != nil {
		if ts, ok := f.cache.Get(key); ok {
			logger.Debug("Tileset cache hit", "dir", dir)
			return ts, nil
		}
	}

	ts, err := wang.Load(dir)
	if err != nil {
		return nil, err
	}
	if f.cache != nil {
		f.cache.SetWithTTL(key, ts, 1, f.cfg.Cache.TTL)
		f.cache.Wait()
	}
	return ts, nil
}

func (f *Forge) forget(dir string) {
	if f.cache != nil {
		f.cache.Del(cacheKey(dir))
	}
}

func cacheKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

// MapFromTileset assembles a width x height tile map from a pattern.
func (f *Forge) MapFromTileset(idOrPath string, width, height int, pattern assembler.Pattern) (*image.NRGBA, error) {
	ts, err := f.LoadTileset(idOrPath)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assembler.AssembleSimple(ts, width, height, pattern)
}

// MapFromTerrain assembles a map from a vertex terrain grid.
func (f *Forge) MapFromTerrain(idOrPath string, grid assembler.Grid, tileSize int) (*image.NRGBA, error) {
	ts, err := f.LoadTileset(idOrPath)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assembler.AssembleFromTerrain(ts, grid, tileSize)
}

// MapFromLayout assembles a map from explicit tile indices.
func (f *Forge) MapFromLayout(idOrPath string, layout assembler.Layout, tileSize int) (*image.NRGBA, error) {
	ts, err := f.LoadTileset(idOrPath)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assembler.AssembleFromLayout(ts, layout, tileSize)
}

// GenerateRegion generates a free-form region at the origin.
func (f *Forge) GenerateRegion(ctx context.Context, req region.Request) (*region.MapRegion, error) {
	return f.regions.CreateInitialRegion(ctx, req)
}

// ExpandRegion generates the neighbour of r on side dir.
func (f *Forge) ExpandRegion(ctx context.Context, r *region.MapRegion, dir region.Direction, description string, overlap, expansionSize int, opts pixellab.Options) (*region.MapRegion, error) {
	return f.regions.ExpandRegion(ctx, r, dir, description, overlap, expansionSize, opts)
}

// Inpaint regenerates rect of r.
func (f *Forge) Inpaint(ctx context.Context, r *region.MapRegion, rect image.Rectangle, description string, opts pixellab.Options) (*region.MapRegion, error) {
	return f.regions.InpaintArea(ctx, r, rect, description, opts)
}

// CreateMapObject generates an object on a transparent background.
func (f *Forge) CreateMapObject(ctx context.Context, req region.ObjectRequest) (*region.MapRegion, error) {
	return f.regions.CreateMapObject(ctx, req)
}

// RotateObject turns an object to a new direction and view.
func (f *Forge) RotateObject(ctx context.Context, src image.Image, fromDir, toDir, fromView, toView string, opts pixellab.Options) (*region.MapRegion, error) {
	return f.regions.RotateObject(ctx, src, fromDir, toDir, fromView, toView, opts)
}

// AnimateObject generates animation frames from a reference image.
func (f *Forge) AnimateObject(ctx context.Context, ref image.Image, action, description, dir string, nFrames int) ([]*region.MapRegion, error) {
	return f.regions.AnimateObject(ctx, ref, action, description, dir, nFrames)
}

// StitchRegions composites regions in order onto one canvas. Offsets are
// shifted first so regions expanded up or left of the origin are kept.
func (f *Forge) StitchRegions(regions []*region.MapRegion, bg color.Color) *image.NRGBA {
	return assembler.Stitch(assembler.NormalizeOffsets(region.Placements(regions)), bg)
}

// SaveMap exports img at scale and mirrors the file when a mirror is
// configured. Scale 0 uses the configured default.
func (f *Forge) SaveMap(ctx context.Context, img image.Image, path string, scale int) (string, error) {
	if scale == 0 {
		scale = f.cfg.Map.Scale
	}
	written, err := f.assembler.ExportPNG(img, path, scale)
	if err != nil {
		return "", err
	}

	if f.mirror != nil {
		key := f.mirror.ObjectKey("maps", filepath.Base(written))
		if err := f.mirror.UploadFile(ctx, written, key); err != nil {
			logger.Warning("Failed to mirror map", "path", written, "error", err)
		}
	}
	return written, nil
}
