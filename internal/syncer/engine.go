package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealcart/coverage-worker/internal/candidates"
	"github.com/mealcart/coverage-worker/internal/config"
	"github.com/mealcart/coverage-worker/internal/logger"
	"github.com/mealcart/coverage-worker/internal/marketplace"
	"github.com/mealcart/coverage-worker/internal/models"
	"github.com/mealcart/coverage-worker/internal/ratelimit"
	"github.com/mealcart/coverage-worker/internal/repository"
	"github.com/mealcart/coverage-worker/internal/retry"
)

// majorMetroPrefixes are zip prefixes of metro areas where the marketplace
// definitely operates. A cached "no coverage" verdict under one of these is
// likely a false negative worth re-probing.
var majorMetroPrefixes = []string{
	"100", "101", "102", "103", "104", // NYC
	"021", "022", "023", "024", // Boston
	"191", "192", // Philadelphia
	"331", "332", "333", // Miami
	"606", "607", // Chicago
	"900", "901", "902", "903", "904", // LA
	"941", "942", "943", "944", // San Francisco
	"981", "982", // Seattle
	"787",               // Austin
	"303",               // Atlanta
	"200", "201", "202", // Washington DC
}

// Prober issues one coverage query for a zip code.
type Prober interface {
	Probe(ctx context.Context, zipCode string) (marketplace.Outcome, error)
}

// Engine drives one synchronization run: it computes the outstanding key set,
// partitions it into batches, and pushes each key through the rate limiter,
// the backoff controller, and the cache store.
type Engine struct {
	cfg          *config.Config
	cacheRepo    *repository.CacheRepository
	jobRepo      *repository.SyncJobRepository
	retailerRepo *repository.RetailerRepository
	prober       Prober
	limiter      *ratelimit.Limiter
	log          *zap.SugaredLogger
}

func New(
	cfg *config.Config,
	cacheRepo *repository.CacheRepository,
	jobRepo *repository.SyncJobRepository,
	retailerRepo *repository.RetailerRepository,
	prober Prober,
	limiter *ratelimit.Limiter,
) *Engine {
	return &Engine{
		cfg:          cfg,
		cacheRepo:    cacheRepo,
		jobRepo:      jobRepo,
		retailerRepo: retailerRepo,
		prober:       prober,
		limiter:      limiter,
		log:          logger.GetLogger("syncer"),
	}
}

// Summary is the operator-facing result of a finished run.
type Summary struct {
	JobID          string
	JobType        models.SyncJobType
	Status         models.SyncJobStatus
	Candidates     int
	Outstanding    int
	Processed      int
	Covered        int
	NoCoverage     int
	Errors         int
	APICalls       int
	RetailersFound int
	Duration       time.Duration
}

// EffectiveRate is the observed request rate over the whole run.
func (s Summary) EffectiveRate() float64 {
	secs := s.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.APICalls) / secs
}

// Run executes one synchronization in the configured mode.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	if e.cfg.Mode == config.ModeRetry {
		return e.runTargetedRetry(ctx)
	}
	return e.runFill(ctx)
}

// runFill probes every candidate zip not yet present in the cache. Because
// the diff excludes cached keys, re-running after an interruption picks up
// exactly where the previous run stopped.
func (e *Engine) runFill(ctx context.Context) (*Summary, error) {
	keys, jobType, err := e.candidateSet()
	if err != nil {
		return nil, err
	}
	e.log.Infof("Generated %d candidate zip codes (%s)", len(keys), jobType)

	existing, err := e.cacheRepo.ExistingKeys(ctx, repository.KeyRange{
		Start: e.cfg.ZipRangeStart,
		End:   e.cfg.ZipRangeEnd,
	})
	if err != nil {
		return nil, err
	}
	e.log.Infof("Found %d existing cache entries", len(existing))

	outstanding := make([]string, 0, len(keys))
	for _, z := range keys {
		if _, ok := existing[z]; !ok {
			outstanding = append(outstanding, z)
		}
	}
	e.log.Infof("Outstanding: %d zip codes to probe", len(outstanding))

	return e.process(ctx, jobType, len(keys), outstanding)
}

// runTargetedRetry re-probes cached no-coverage zips in major metro areas.
// The keys already exist in the cache, so there is no diff; the latest probe
// simply overwrites the old verdict.
func (e *Engine) runTargetedRetry(ctx context.Context) (*Summary, error) {
	keys, err := e.cacheRepo.KeysWithoutCoverage(ctx, majorMetroPrefixes)
	if err != nil {
		return nil, err
	}
	e.log.Infof("Targeted retry: %d suspicious no-coverage zip codes", len(keys))

	return e.process(ctx, models.JobTypeTargetedRetry, len(keys), keys)
}

func (e *Engine) candidateSet() ([]string, models.SyncJobType, error) {
	var keys []string
	var err error
	switch e.cfg.CandidateSource {
	case config.CandidatesFromFile:
		keys, err = candidates.FromFile(e.cfg.CandidateFile)
	default:
		keys, err = candidates.FromRanges()
	}
	if err != nil {
		return nil, "", err
	}

	jobType := models.JobTypeFullScan
	if e.cfg.ZipRangeStart != "" || e.cfg.ZipRangeEnd != "" {
		keys = candidates.Filter(keys, e.cfg.ZipRangeStart, e.cfg.ZipRangeEnd)
		jobType = models.JobTypeRangeLimited
		if len(keys) == 0 {
			return nil, "", fmt.Errorf("zip range [%s, %s] matches no candidates",
				e.cfg.ZipRangeStart, e.cfg.ZipRangeEnd)
		}
	}
	return keys, jobType, nil
}

type counters struct {
	processed      int
	covered        int
	noCoverage     int
	errors         int
	apiCalls       int
	retailersFound int
}

func (c counters) snapshot() repository.Counters {
	return repository.Counters{
		Processed:      c.processed,
		RetailersFound: c.retailersFound,
		Errors:         c.errors,
		APICalls:       c.apiCalls,
	}
}

type keyResult struct {
	zipCode  string
	outcome  marketplace.Outcome
	attempts int
	stored   bool
	err      error
}

// process runs the Processing phase: batches, workers, progress flushes, and
// final job state. The coordinator goroutine is the only sync-job writer.
func (e *Engine) process(ctx context.Context, jobType models.SyncJobType, total int, outstanding []string) (*Summary, error) {
	job, err := e.jobRepo.Create(ctx, jobType, len(outstanding))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var c counters

	if len(outstanding) == 0 {
		// Nothing to do: the cache already covers every candidate.
		return e.finish(job, jobType, total, outstanding, c, models.JobStatusCompleted, start)
	}

	flushEvery := e.cfg.ProgressEvery
	if flushEvery <= 0 {
		flushEvery = 25
	}

	batches := chunk(outstanding, e.cfg.BatchSize)
	for bi, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		e.log.Infof("Processing batch %d/%d (%d zip codes)", bi+1, len(batches), len(batch))

		for res := range e.processBatch(ctx, batch) {
			c.apiCalls += res.attempts

			switch {
			case res.stored && res.outcome.Kind == marketplace.Covered:
				c.processed++
				c.covered++
				c.retailersFound += res.outcome.RetailerCount()
			case res.stored && res.outcome.Kind == marketplace.NotCovered:
				c.processed++
				c.noCoverage++
			case res.stored: // permanent failure, recorded as invalid
				c.processed++
				c.errors++
			case errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded):
				// Interrupted before a verdict; the key stays outstanding
				// and the next run picks it up.
			default:
				c.errors++
				e.log.Warnf("Failed to process %s: %v", res.zipCode, res.err)
			}

			if done := c.processed + c.errors; done > 0 && done%flushEvery == 0 {
				e.flushProgress(ctx, job.ID, c, len(outstanding), start)
			}
		}

		if err := e.jobRepo.UpdateProgress(ctx, job.ID, c.snapshot()); err != nil && ctx.Err() == nil {
			e.log.Warnf("Failed to flush job progress: %v", err)
		}

		// Breather between batches to avoid sustained load spikes.
		if bi < len(batches)-1 && ctx.Err() == nil {
			select {
			case <-ctx.Done():
			case <-time.After(e.cfg.BatchPause):
			}
		}
	}

	status := models.JobStatusCompleted
	if ctx.Err() != nil {
		status = models.JobStatusCancelled
		e.log.Warnf("Run interrupted, finalizing job as cancelled")
	}

	return e.finish(job, jobType, total, outstanding, c, status, start)
}

// processBatch fans the batch out to the worker pool and returns the results
// channel. Workers stop picking up keys once the context is cancelled; the
// in-flight key finishes its current attempt.
func (e *Engine) processBatch(ctx context.Context, batch []string) <-chan keyResult {
	keysCh := make(chan string)
	results := make(chan keyResult)

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(batch) {
		workers = len(batch)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for zip := range keysCh {
				results <- e.processKey(ctx, zip)
			}
		}()
	}

	go func() {
		defer func() {
			close(keysCh)
			wg.Wait()
			close(results)
		}()
		for _, zip := range batch {
			select {
			case keysCh <- zip:
			case <-ctx.Done():
				return
			}
		}
	}()

	return results
}

// processKey runs the full pipeline for one zip: rate limit, probe with
// backoff, classify, persist. A failure here never aborts the run.
func (e *Engine) processKey(ctx context.Context, zipCode string) keyResult {
	if err := e.limiter.Acquire(ctx); err != nil {
		return keyResult{zipCode: zipCode, err: err}
	}

	policy := retry.Policy{
		MaxAttempts: e.cfg.MaxRetries,
		BaseDelay:   e.cfg.RetryBaseDelay,
		MaxDelay:    e.cfg.RetryMaxDelay,
	}

	outcome, attempts, err := retry.Do(ctx, policy,
		func(ctx context.Context) (marketplace.Outcome, error) {
			return e.prober.Probe(ctx, zipCode)
		},
		func(o marketplace.Outcome, err error) bool {
			return err == nil && o.Retryable()
		},
	)

	res := keyResult{zipCode: zipCode, outcome: outcome, attempts: attempts}
	if err != nil {
		res.err = err
		return res
	}
	if !outcome.Definitive() {
		res.err = fmt.Errorf("probe retries exhausted for %s: %s", zipCode, outcome.Cause)
		return res
	}

	now := time.Now()
	status := outcome.HTTPStatus
	entry := models.CacheEntry{
		ZipCode:           zipCode,
		IsValid:           outcome.Kind != marketplace.PermanentFailure,
		HasCoverage:       outcome.Kind == marketplace.Covered,
		LastUpdated:       now,
		LastAPICheck:      now,
		APIResponseStatus: &status,
	}
	if outcome.Kind != marketplace.PermanentFailure {
		count := outcome.RetailerCount()
		entry.RetailerCount = &count
	}

	if err := e.cacheRepo.Upsert(ctx, entry); err != nil {
		// The key stays outstanding until a write lands; a future run
		// retries it.
		res.err = err
		return res
	}
	res.stored = true

	if outcome.Kind == marketplace.Covered {
		rows := make([]models.Retailer, 0, len(outcome.Retailers))
		for _, r := range outcome.Retailers {
			rows = append(rows, models.Retailer{
				ID:          uuid.New().String(),
				ZipCode:     zipCode,
				RetailerKey: r.RetailerKey,
				Name:        r.Name,
				Priority:    marketplace.PriorityFor(r.Name),
				LastUpdated: now,
			})
		}
		if err := e.retailerRepo.ReplaceForZip(ctx, zipCode, rows); err != nil {
			// Verdict is already cached; stale retailer rows fix themselves
			// on the next probe of this zip.
			e.log.Warnf("Failed to replace retailers for %s: %v", zipCode, err)
		}
	}

	return res
}

func (e *Engine) flushProgress(ctx context.Context, jobID string, c counters, outstanding int, start time.Time) {
	if err := e.jobRepo.UpdateProgress(ctx, jobID, c.snapshot()); err != nil {
		if ctx.Err() == nil {
			e.log.Warnf("Failed to flush job progress: %v", err)
		}
		return
	}

	elapsed := time.Since(start).Seconds()
	done := c.processed + c.errors
	if elapsed > 0 && done > 0 {
		rate := float64(c.apiCalls) / elapsed
		remaining := float64(outstanding-done) / (float64(done) / elapsed)
		e.log.Infof("Progress: %d/%d (%.1f%%), rate %.1f req/s, ETA %s",
			done, outstanding, float64(done)/float64(outstanding)*100,
			rate, (time.Duration(remaining) * time.Second).Round(time.Second))
	}
}

// finish finalizes the job row exactly once and builds the summary. The
// terminal write uses a fresh context so a cancelled run still lands it.
func (e *Engine) finish(job *models.SyncJob, jobType models.SyncJobType, total int, outstanding []string, c counters, status models.SyncJobStatus, start time.Time) (*Summary, error) {
	finalCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.jobRepo.Finalize(finalCtx, job.ID, status, c.snapshot()); err != nil {
		e.log.Errorf("Failed to finalize sync job %s: %v", job.ID, err)
	}

	s := &Summary{
		JobID:          job.ID,
		JobType:        jobType,
		Status:         status,
		Candidates:     total,
		Outstanding:    len(outstanding),
		Processed:      c.processed,
		Covered:        c.covered,
		NoCoverage:     c.noCoverage,
		Errors:         c.errors,
		APICalls:       c.apiCalls,
		RetailersFound: c.retailersFound,
		Duration:       time.Since(start),
	}

	e.log.Infof("Sync %s: job=%s processed=%d/%d covered=%d no-coverage=%d errors=%d api-calls=%d retailers=%d duration=%s rate=%.2f req/s",
		status, s.JobID, s.Processed, s.Outstanding, s.Covered, s.NoCoverage,
		s.Errors, s.APICalls, s.RetailersFound, s.Duration.Round(time.Millisecond), s.EffectiveRate())

	return s, nil
}

func chunk(keys []string, size int) [][]string {
	if size <= 0 {
		size = 100
	}
	var out [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		out = append(out, keys[start:end])
	}
	return out
}
