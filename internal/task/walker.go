package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/atlas-api/internal/discovery"
	"github.com/phrazzld/atlas-api/internal/domain"
	"github.com/phrazzld/atlas-api/internal/store"
)

// stepFunc receives advisory descriptions of the work currently in progress.
type stepFunc func(ctx context.Context, step string)

// hierarchyWalk executes one task's level-by-level refresh. The walk is
// strict top-down per branch: a node's children are fetched only after the
// node itself is upserted. Sibling branches fan out on the scheduler and may
// interleave freely; the shared permit pool inside the fetcher is the only
// bound on fetch concurrency.
//
// Failure policy: an error on the top-level set (or, for a province refresh,
// the scope's direct children) aborts the walk. An error on any lower level
// is recorded as a branch failure, that subtree is skipped, and sibling
// branches continue.
type hierarchyWalk struct {
	task    *domain.RefreshTask
	fetcher *HierarchyFetcher
	places  store.PlaceStore
	tracker *ProgressTracker
	sched   Scheduler
	logger  *slog.Logger
	step    stepFunc

	wg sync.WaitGroup

	mu       sync.Mutex
	failures []domain.BranchFailure
}

func newHierarchyWalk(
	task *domain.RefreshTask,
	fetcher *HierarchyFetcher,
	places store.PlaceStore,
	tracker *ProgressTracker,
	sched Scheduler,
	logger *slog.Logger,
	step stepFunc,
) *hierarchyWalk {
	if step == nil {
		step = func(context.Context, string) {}
	}
	return &hierarchyWalk{
		task:    task,
		fetcher: fetcher,
		places:  places,
		tracker: tracker,
		sched:   sched,
		logger:  logger,
		step:    step,
	}
}

// Run walks the hierarchy and blocks until every branch has unwound. On
// success it returns the result summary. A context error means the task was
// cancelled; any other error is task-fatal.
func (w *hierarchyWalk) Run(ctx context.Context) (*domain.RefreshResult, error) {
	// A fatal abort cancels walkCtx so in-flight branches stop early
	// instead of running to completion for a task that already failed.
	walkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var err error
	switch w.task.Kind {
	case domain.TaskKindProvinceRefresh:
		err = w.runProvince(walkCtx)
	default:
		err = w.runFull(walkCtx)
	}
	if err != nil {
		cancel()
	}

	// Branches spawned before a failure or cancellation still need to
	// unwind before the task can settle.
	w.wg.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}

	return w.buildResult(), nil
}

// runFull refreshes the whole hierarchy. A failure fetching or storing the
// top-level set is fatal.
func (w *hierarchyWalk) runFull(ctx context.Context) error {
	w.step(ctx, "fetching provinces")

	provinces, err := w.fetcher.FetchProvinces(ctx)
	if err != nil {
		return fmt.Errorf("fetch provinces: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	w.tracker.AddTotal(domain.LevelProvince, len(provinces))
	w.logger.Info("top-level set resolved", "provinces", len(provinces))

	for _, node := range provinces {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		id, err := w.places.Upsert(ctx, domain.LevelProvince, 0, upsertFromNode(node))
		if err != nil {
			return fmt.Errorf("upsert province %q: %w", node.Name, err)
		}
		w.tracker.MarkProcessed(domain.LevelProvince, 1)

		w.spawnBranch(ctx, domain.LevelCity, id, node.Name)
	}

	return nil
}

// runProvince refreshes a single province's subtree. The scope is upserted
// if the store does not know it yet; a failure fetching or storing the
// scope's direct children is fatal.
func (w *hierarchyWalk) runProvince(ctx context.Context) error {
	scope := w.task.Scope
	w.step(ctx, fmt.Sprintf("resolving province %s", scope))

	provinceID, err := w.places.FindByName(ctx, domain.LevelProvince, scope)
	if errors.Is(err, store.ErrNotFound) {
		provinceID, err = w.places.Upsert(ctx, domain.LevelProvince, 0, store.UpsertPlace{Name: scope})
	}
	if err != nil {
		return fmt.Errorf("resolve province %q: %w", scope, err)
	}

	w.step(ctx, fmt.Sprintf("fetching cities of %s", scope))

	cities, err := w.fetcher.FetchChildren(ctx, scope, domain.LevelCity)
	if err != nil {
		return fmt.Errorf("fetch cities of %q: %w", scope, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	w.tracker.AddTotal(domain.LevelCity, len(cities))

	for _, node := range cities {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		id, err := w.places.Upsert(ctx, domain.LevelCity, provinceID, upsertFromNode(node))
		if err != nil {
			return fmt.Errorf("upsert city %q: %w", node.Name, err)
		}
		w.tracker.MarkProcessed(domain.LevelCity, 1)

		w.spawnBranch(ctx, domain.LevelDistrict, id, scope+"/"+node.Name)
	}

	return nil
}

// spawnBranch schedules the expansion of one node's children. Cancellation
// is checked before the branch starts so no new work begins on a cancelled
// task.
func (w *hierarchyWalk) spawnBranch(ctx context.Context, level domain.Level, parentID int64, parentPath string) {
	if ctx.Err() != nil {
		return
	}

	w.wg.Add(1)
	w.sched.Spawn(func() {
		defer w.wg.Done()
		w.expand(ctx, level, parentID, parentPath)
	})
}

// expand fetches and upserts the children of parentPath at the given level,
// then recurses one level down. Failures here are branch failures, never
// fatal: the subtree is skipped and siblings continue.
func (w *hierarchyWalk) expand(ctx context.Context, level domain.Level, parentID int64, parentPath string) {
	if ctx.Err() != nil {
		return
	}

	w.step(ctx, fmt.Sprintf("fetching %s of %s", levelPlural(level), parentPath))

	children, err := w.fetcher.FetchChildren(ctx, parentPath, level)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.recordFailure(level, parentPath, err)
		return
	}
	if ctx.Err() != nil {
		// Result discarded: cancellation was observed while the call was
		// in flight.
		return
	}

	w.tracker.AddTotal(level, len(children))

	childLevel, hasChildren := level.Child()
	for _, node := range children {
		if ctx.Err() != nil {
			return
		}

		id, err := w.places.Upsert(ctx, level, parentID, upsertFromNode(node))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.recordFailure(level, parentPath+"/"+node.Name, err)
			continue
		}
		w.tracker.MarkProcessed(level, 1)

		if hasChildren {
			w.spawnBranch(ctx, childLevel, id, parentPath+"/"+node.Name)
		}
	}
}

// recordFailure appends one branch failure to the result.
func (w *hierarchyWalk) recordFailure(level domain.Level, path string, err error) {
	w.logger.Warn("branch failed, skipping subtree",
		"level", level,
		"path", path,
		"error", err)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures = append(w.failures, domain.BranchFailure{
		Level: level,
		Path:  path,
		Error: err.Error(),
	})
}

// buildResult snapshots the walk outcome.
func (w *hierarchyWalk) buildResult() *domain.RefreshResult {
	counts := w.tracker.Counts()

	w.mu.Lock()
	failures := make([]domain.BranchFailure, len(w.failures))
	copy(failures, w.failures)
	w.mu.Unlock()

	return &domain.RefreshResult{
		Counts: domain.LevelCounts{
			Provinces:  counts[domain.LevelProvince].Processed,
			Cities:     counts[domain.LevelCity].Processed,
			Districts:  counts[domain.LevelDistrict].Processed,
			Facilities: counts[domain.LevelFacility].Processed,
		},
		Failures: failures,
	}
}

// upsertFromNode converts a discovery node into store attributes.
func upsertFromNode(node discovery.Node) store.UpsertPlace {
	return store.UpsertPlace{
		Name:       node.Name,
		Code:       node.Code,
		Website:    node.Website,
		Confidence: node.Confidence,
	}
}

// levelPlural names a level's children in step descriptions.
func levelPlural(level domain.Level) string {
	switch level {
	case domain.LevelProvince:
		return "provinces"
	case domain.LevelCity:
		return "cities"
	case domain.LevelDistrict:
		return "districts"
	case domain.LevelFacility:
		return "facilities"
	default:
		return string(level)
	}
}
