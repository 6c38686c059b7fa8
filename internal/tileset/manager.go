// Package tileset manages Wang tileset generation jobs: submission,
// polling to a terminal state, anchor-linked chains of tilesets, and local
// persistence of completed results.
package tileset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawnchairsociety/mapforge/internal/database"
	"github.com/lawnchairsociety/mapforge/internal/logger"
	"github.com/lawnchairsociety/mapforge/internal/pixellab"
)

// Job states.
const (
	StatusPending   = database.StatusPending
	StatusCompleted = database.StatusCompleted
	StatusFailed    = database.StatusFailed
)

// Defaults used when Config leaves the poll budget unset.
const (
	DefaultMaxWait  = 300 * time.Second
	DefaultInterval = 5 * time.Second
)

// Generator submits tileset jobs and reports their status.
type Generator interface {
	SubmitTileset(ctx context.Context, req pixellab.TilesetRequest) (string, error)
	TilesetStatus(ctx context.Context, tilesetID string) (*pixellab.TilesetStatus, error)
}

// Downloader fetches a remote file, such as a tileset's sprite sheet.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// JobStore journals submitted jobs so polling can resume in a later process.
type JobStore interface {
	CreateJob(ctx context.Context, job *database.JobRecord) error
	UpdateJob(ctx context.Context, job *database.JobRecord) error
	GetJob(ctx context.Context, jobID string) (*database.JobRecord, error)
	ListJobs(ctx context.Context, status string) ([]*database.JobRecord, error)
	ChainJobs(ctx context.Context, chainID string) ([]*database.JobRecord, error)
}

// Mirror copies a persisted tileset directory to remote storage.
type Mirror interface {
	MirrorDir(ctx context.Context, dir string) (int, error)
}

// Config holds the manager's collaborators and defaults. Store, Downloader
// and Mirror are optional.
type Config struct {
	AssetsDir string
	MaxWait   time.Duration
	Interval  time.Duration

	Store      JobStore
	Downloader Downloader
	Mirror     Mirror
}

// Request describes one pairwise tileset.
type Request struct {
	LowerDescription      string
	UpperDescription      string
	TransitionSize        float64
	TransitionDescription string
	TileSize              int

	// LowerBaseTileID anchors the lower terrain to a previously generated
	// tile. UpperBaseTileID does the same for the upper terrain.
	LowerBaseTileID string
	UpperBaseTileID string

	Options pixellab.Options

	ChainID   string
	ChainStep int
}

// ValidTransitionSize reports whether s is one of 0, 0.25, 0.5 and 1.0.
func ValidTransitionSize(s float64) bool {
	switch s {
	case 0, 0.25, 0.5, 1.0:
		return true
	}
	return false
}

// ValidTileSize reports whether s is 16 or 32.
func ValidTileSize(s int) bool {
	return s == 16 || s == 32
}

// Validate checks the descriptions, sizes and options.
func (r Request) Validate() error {
	if strings.TrimSpace(r.LowerDescription) == "" || strings.TrimSpace(r.UpperDescription) == "" {
		return ErrEmptyDescription
	}
	if !ValidTransitionSize(r.TransitionSize) {
		return fmt.Errorf("%w: got %v", ErrInvalidTransitionSize, r.TransitionSize)
	}
	if !ValidTileSize(r.TileSize) {
		return fmt.Errorf("%w: got %d", ErrInvalidTileSize, r.TileSize)
	}
	return r.Options.Validate()
}

func (r Request) apiRequest() pixellab.TilesetRequest {
	return pixellab.TilesetRequest{
		LowerDescription:      r.LowerDescription,
		UpperDescription:      r.UpperDescription,
		TransitionSize:        r.TransitionSize,
		TransitionDescription: r.TransitionDescription,
		TileSize:              r.TileSize,
		LowerBaseTileID:       r.LowerBaseTileID,
		UpperBaseTileID:       r.UpperBaseTileID,
		Options:               r.Options,
	}
}

// Job is a submitted tileset job.
type Job struct {
	ID        string
	Request   Request
	Status    string
	CreatedAt time.Time
}

// Result is a job that reached the completed state.
type Result struct {
	TilesetID        string
	Status           string
	LowerBaseTileID  string
	UpperBaseTileID  string
	LowerDescription string
	UpperDescription string
	TileSize         int

	// Tiles holds PNG bytes in corner-code order.
	Tiles  [][]byte
	PNGURL string

	// LocalPath is set once the result is persisted.
	LocalPath string
	CreatedAt time.Time
}

// Manager runs tileset jobs against a Generator.
type Manager struct {
	gen Generator
	cfg Config

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewManager creates a manager. Zero poll settings take the defaults.
func NewManager(gen Generator, cfg Config) *Manager {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.AssetsDir == "" {
		cfg.AssetsDir = "assets/tilesets"
	}
	return &Manager{gen: gen, cfg: cfg, jobs: make(map[string]*Job)}
}

// AssetsDir returns the directory tilesets persist under by default.
func (m *Manager) AssetsDir() string {
	return m.cfg.AssetsDir
}

// CreateTileset validates req, submits it and journals the pending job.
func (m *Manager) CreateTileset(ctx context.Context, req Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id, err := m.gen.SubmitTileset(ctx, req.apiRequest())
	if err != nil {
		return nil, fmt.Errorf("submit tileset %q -> %q: %w", req.LowerDescription, req.UpperDescription, err)
	}

	job := &Job{ID: id, Request: req, Status: StatusPending, CreatedAt: time.Now().UTC()}
	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	m.journalCreate(ctx, job)
	logger.Info("Submitted tileset job",
		"job_id", id,
		"lower", req.LowerDescription,
		"upper", req.UpperDescription,
		"chain_id", req.ChainID,
		"step", req.ChainStep)
	return job, nil
}

// PollUntilComplete polls jobID until it completes or fails. The job is
// polled at least once; zero maxWait or interval take the manager's
// defaults. An exhausted budget returns ErrTimeout and leaves the job
// pending. A cancelled ctx returns ErrCancelled.
func (m *Manager) PollUntilComplete(ctx context.Context, jobID string, maxWait, interval time.Duration) (*Result, error) {
	if maxWait <= 0 {
		maxWait = m.cfg.MaxWait
	}
	if interval <= 0 {
		interval = m.cfg.Interval
	}
	log := logger.With("job_id", jobID)
	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: job %s: %v", ErrCancelled, jobID, err)
		}

		status, err := m.gen.TilesetStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: job %s: %v", ErrCancelled, jobID, ctx.Err())
			}
			return nil, fmt.Errorf("poll tileset job %s: %w", jobID, err)
		}

		switch status.Status {
		case pixellab.StatusCompleted:
			res := m.newResult(ctx, jobID, status)
			m.journalUpdate(ctx, jobID, func(rec *database.JobRecord) {
				rec.Status = StatusCompleted
				rec.LowerBaseTileID = res.LowerBaseTileID
				rec.UpperBaseTileID = res.UpperBaseTileID
			})
			log.Info("Tileset job completed", "attempts", attempt, "tiles", len(res.Tiles))
			return res, nil

		case pixellab.StatusFailed:
			ferr := &GenerationFailedError{JobID: jobID, Payload: status.Raw}
			m.journalUpdate(ctx, jobID, func(rec *database.JobRecord) {
				rec.Status = StatusFailed
				rec.Error = ferr.Error()
			})
			log.Error("Tileset job failed", "attempts", attempt)
			return nil, ferr
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			log.Warn("Tileset job still pending", "status", status.Status, "max_wait", maxWait)
			return nil, fmt.Errorf("%w: job %s still %s after %s", ErrTimeout, jobID, status.Status, maxWait)
		}

		wait := min(interval, remaining)
		log.Debug("Tileset job not ready", "status", status.Status, "attempt", attempt, "wait", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: job %s: %v", ErrCancelled, jobID, ctx.Err())
		case <-timer.C:
		}
	}
}

// Resume re-polls a journaled job with the manager's default budget.
func (m *Manager) Resume(ctx context.Context, jobID string) (*Result, error) {
	if m.cfg.Store == nil {
		return nil, ErrNoJournal
	}
	rec, err := m.cfg.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if _, ok := m.jobs[jobID]; !ok {
		m.jobs[jobID] = jobFromRecord(rec)
	}
	m.mu.Unlock()

	logger.Info("Resuming tileset job", "job_id", jobID, "status", rec.Status)
	return m.PollUntilComplete(ctx, jobID, 0, 0)
}

// Pending lists journaled jobs that have not reached a terminal state.
func (m *Manager) Pending(ctx context.Context) ([]*database.JobRecord, error) {
	if m.cfg.Store == nil {
		return nil, ErrNoJournal
	}
	return m.cfg.Store.ListJobs(ctx, StatusPending)
}

// Jobs lists every journaled job, newest last. An empty status lists all.
func (m *Manager) Jobs(ctx context.Context, status string) ([]*database.JobRecord, error) {
	if m.cfg.Store == nil {
		return nil, ErrNoJournal
	}
	return m.cfg.Store.ListJobs(ctx, status)
}

// ChainJobs lists the journaled jobs of one chain in step order.
func (m *Manager) ChainJobs(ctx context.Context, chainID string) ([]*database.JobRecord, error) {
	if m.cfg.Store == nil {
		return nil, ErrNoJournal
	}
	return m.cfg.Store.ChainJobs(ctx, chainID)
}

// CreateChain generates len(terrains)-1 tilesets in order. Step i pairs
// terrains[i] with terrains[i+1] and is anchored to the upper base tile of
// step i-1. When a step fails the completed prefix is returned with a
// *ChainError.
func (m *Manager) CreateChain(ctx context.Context, terrains []string, transitionSize float64, tileSize int, opts pixellab.Options) ([]*Result, error) {
	if len(terrains) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrChainTooShort, len(terrains))
	}
	for i, t := range terrains {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: terrain %d", ErrEmptyDescription, i)
		}
	}
	if !ValidTransitionSize(transitionSize) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidTransitionSize, transitionSize)
	}
	if !ValidTileSize(tileSize) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTileSize, tileSize)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	chainID := uuid.NewString()
	log := logger.With("chain_id", chainID)
	log.Info("Creating tileset chain", "terrains", len(terrains))

	results := make([]*Result, 0, len(terrains)-1)
	for i := 0; i < len(terrains)-1; i++ {
		req := Request{
			LowerDescription: terrains[i],
			UpperDescription: terrains[i+1],
			TransitionSize:   transitionSize,
			TileSize:         tileSize,
			Options:          opts,
			ChainID:          chainID,
			ChainStep:        i,
		}
		if i > 0 {
			req.LowerBaseTileID = results[i-1].UpperBaseTileID
			if req.LowerBaseTileID == "" {
				log.Warn("Previous step returned no upper base tile, step is unanchored", "step", i)
			}
		}

		res, err := m.runStep(ctx, req)
		if err != nil {
			log.Error("Tileset chain aborted", "step", i, "completed", len(results), "error", err)
			return results, &ChainError{Step: i, Lower: req.LowerDescription, Upper: req.UpperDescription, Err: err}
		}
		results = append(results, res)
	}

	log.Info("Tileset chain complete", "tilesets", len(results))
	return results, nil
}

func (m *Manager) runStep(ctx context.Context, req Request) (*Result, error) {
	job, err := m.CreateTileset(ctx, req)
	if err != nil {
		return nil, err
	}
	return m.PollUntilComplete(ctx, job.ID, 0, 0)
}

func (m *Manager) newResult(ctx context.Context, jobID string, status *pixellab.TilesetStatus) *Result {
	res := &Result{
		TilesetID:       jobID,
		Status:          StatusCompleted,
		LowerBaseTileID: status.LowerBaseTileID,
		UpperBaseTileID: status.UpperBaseTileID,
		Tiles:           status.Tiles,
		PNGURL:          status.PNGURL,
		CreatedAt:       time.Now().UTC(),
	}
	if status.TilesetID != "" {
		res.TilesetID = status.TilesetID
	}
	if job := m.lookup(ctx, jobID); job != nil {
		res.LowerDescription = job.Request.LowerDescription
		res.UpperDescription = job.Request.UpperDescription
		res.TileSize = job.Request.TileSize
		res.CreatedAt = job.CreatedAt
	}
	return res
}

// lookup finds a job submitted by this manager, falling back to the journal.
func (m *Manager) lookup(ctx context.Context, jobID string) *Job {
	m.mu.Lock()
	job := m.jobs[jobID]
	m.mu.Unlock()
	if job != nil || m.cfg.Store == nil {
		return job
	}
	rec, err := m.cfg.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil
	}
	return jobFromRecord(rec)
}

func jobFromRecord(rec *database.JobRecord) *Job {
	req := Request{
		LowerDescription: rec.LowerDescription,
		UpperDescription: rec.UpperDescription,
		TransitionSize:   rec.TransitionSize,
		TileSize:         rec.TileSize,
		LowerBaseTileID:  rec.LowerBaseTileID,
		UpperBaseTileID:  rec.UpperBaseTileID,
		ChainID:          rec.ChainID,
		ChainStep:        rec.ChainStep,
	}
	if err := json.Unmarshal([]byte(rec.Options), &req.Options); err != nil {
		logger.Debug("Ignoring unreadable job options", "job_id", rec.JobID, "error", err)
	}
	return &Job{ID: rec.JobID, Request: req, Status: rec.Status, CreatedAt: rec.CreatedAt}
}

// Journal writes are best effort: a broken journal never fails generation.

func (m *Manager) journalCreate(ctx context.Context, job *Job) {
	if m.cfg.Store == nil {
		return
	}
	opts, err := json.Marshal(job.Request.Options)
	if err != nil {
		opts = []byte("{}")
	}
	rec := &database.JobRecord{
		JobID:            job.ID,
		LowerDescription: job.Request.LowerDescription,
		UpperDescription: job.Request.UpperDescription,
		TransitionSize:   job.Request.TransitionSize,
		TileSize:         job.Request.TileSize,
		LowerBaseTileID:  job.Request.LowerBaseTileID,
		UpperBaseTileID:  job.Request.UpperBaseTileID,
		Options:          string(opts),
		ChainID:          job.Request.ChainID,
		ChainStep:        job.Request.ChainStep,
		Status:           StatusPending,
		CreatedAt:        job.CreatedAt,
	}
	if err := m.cfg.Store.CreateJob(ctx, rec); err != nil {
		logger.Warning("Failed to journal tileset job", "job_id", job.ID, "error", err)
	}
}

func (m *Manager) journalUpdate(ctx context.Context, jobID string, apply func(rec *database.JobRecord)) {
	if m.cfg.Store == nil {
		return
	}
	rec, err := m.cfg.Store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			logger.Debug("Job not journaled, skipping update", "job_id", jobID)
		} else {
			logger.Warning("Failed to read journaled job", "job_id", jobID, "error", err)
		}
		return
	}
	apply(rec)
	if err := m.cfg.Store.UpdateJob(ctx, rec); err != nil {
		logger.Warning("Failed to update journaled job", "job_id", jobID, "error", err)
	}
}
