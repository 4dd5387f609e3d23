package tracker

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"cattos-tracker/internal/apiclient"
	"cattos-tracker/internal/cache"
	"cattos-tracker/internal/discovery"
	"cattos-tracker/internal/history"
	"cattos-tracker/internal/parser"
	"cattos-tracker/internal/worker"

	"github.com/rs/zerolog/log"
)

// Deliverer sends the character history somewhere. *apiclient.Client
// satisfies it.
type Deliverer interface {
	Send(ctx context.Context, characters []history.Character) error
}

// Options configures a Tracker.
type Options struct {
	// File, when set, is parsed instead of discovering files in Install.
	File      string
	Install   *discovery.Install
	Parser    *parser.SavedVariablesParser
	History   *history.History
	Deliverer Deliverer
	Workers   int
	Interval  time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Summary reports what one refresh did.
type Summary struct {
	Files      int
	Failed     int
	Characters int
	Snapshots  int
	Delivered  bool
}

// Tracker polls saved-variables files, folds them into the history and
// delivers the history when it changed.
type Tracker struct {
	file      string
	install   *discovery.Install
	parser    *parser.SavedVariablesParser
	history   *history.History
	deliverer Deliverer
	interval  time.Duration
	now       func() time.Time
	ledger    *cache.Ledger
	pool      *worker.Pool[string, parser.Result]
}

func New(opts Options) *Tracker {
	t := &Tracker{
		file:      opts.File,
		install:   opts.Install,
		parser:    opts.Parser,
		history:   opts.History,
		deliverer: opts.Deliverer,
		interval:  opts.Interval,
		now:       opts.Now,
		ledger:    cache.NewLedger(),
	}
	if t.parser == nil {
		t.parser = parser.NewSavedVariablesParser()
	}
	if t.interval <= 0 {
		t.interval = 5 * time.Second
	}
	if t.now == nil {
		t.now = time.Now
	}
	t.pool = worker.NewPool(opts.Workers, func(_ context.Context, path string) (parser.Result, error) {
		return t.parseFile(path)
	})
	return t
}

// parseFile parses path. A discovered file without tracker data falls back to
// the next addon file of the same account.
func (t *Tracker) parseFile(path string) (parser.Result, error) {
	result, err := t.parser.ParseFile(path)
	if t.file != "" || !errors.Is(err, parser.ErrUnrecognizedFormat) {
		return result, err
	}
	for _, alt := range discovery.Fallbacks(path) {
		res, altErr := t.parser.ParseFile(alt)
		if altErr == nil {
			log.Debug().Str("file", path).Str("fallback", alt).Msg("Using fallback saved variables")
			return res, nil
		}
		if !errors.Is(altErr, parser.ErrUnrecognizedFormat) {
			return nil, altErr
		}
	}
	return nil, err
}

// Files returns the saved-variables files a refresh reads.
func (t *Tracker) Files() ([]string, error) {
	if t.file != "" {
		if !t.parser.CanParse(filepath.Ext(t.file)) {
			return nil, fmt.Errorf("%s is not a Lua file: %w", t.file, parser.ErrUnrecognizedFormat)
		}
		return []string{t.file}, nil
	}
	if t.install == nil {
		return nil, nil
	}
	return t.install.SavedVariablesFiles()
}

// Refresh parses every file once, records new snapshots and delivers the
// history if its fingerprint changed. Unreadable or foreign files are
// logged and counted in Summary.Failed.
func (t *Tracker) Refresh(ctx context.Context) (Summary, error) {
	var sum Summary

	files, err := t.Files()
	if err != nil {
		return sum, fmt.Errorf("resolve saved variables: %w", err)
	}
	if len(files) == 0 {
		log.Warn().Msg("No saved variables files found")
		return sum, nil
	}
	sum.Files = len(files)

	tasks := t.pool.Execute(ctx, files)
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	now := t.now()
	var recordErr error
	for _, task := range tasks {
		if task.Err != nil {
			sum.Failed++
			ev := log.Warn().Err(task.Err).Str("file", task.Input)
			switch {
			case errors.Is(task.Err, parser.ErrFileNotFound):
				ev.Msg("Saved variables file not readable")
			case errors.Is(task.Err, parser.ErrUnrecognizedFormat):
				ev.Msg("Saved variables file has no tracker data")
			default:
				ev.Msg("Failed to parse saved variables")
			}
			continue
		}

		for _, key := range slices.Sorted(maps.Keys(task.Result)) {
			rec := task.Result[key]
			sum.Characters++
			added, err := t.history.AddSnapshot(ctx, key, rec.Equipment, rec.ClassOr(history.UnknownValue), now)
			if err != nil {
				log.Error().Err(err).Str("character", key).Msg("Failed to record equipment")
				recordErr = errors.Join(recordErr, fmt.Errorf("record %s: %w", key, err))
				continue
			}
			if added {
				sum.Snapshots++
			}
		}
	}
	if recordErr != nil {
		return sum, recordErr
	}

	log.Debug().
		Int("files", sum.Files).
		Int("characters", sum.Characters).
		Int("snapshots", sum.Snapshots).
		Msg("Refreshed equipment")

	if t.deliverer == nil {
		return sum, nil
	}

	delivered, err := t.deliver(ctx)
	sum.Delivered = delivered
	return sum, err
}

// ForceSync sends the whole history regardless of the last delivered state.
func (t *Tracker) ForceSync(ctx context.Context) error {
	if t.deliverer == nil {
		return apiclient.ErrDisabled
	}
	t.ledger.Reset()
	_, err := t.deliver(ctx)
	return err
}

func (t *Tracker) deliver(ctx context.Context) (bool, error) {
	chars := t.history.Characters()
	fp := cache.Fingerprint(chars)
	if !t.ledger.Changed(fp) {
		return false, nil
	}

	if err := t.deliverer.Send(ctx, chars); err != nil {
		return false, fmt.Errorf("deliver history: %w", err)
	}
	t.ledger.Mark(fp)
	return true, nil
}

// Run refreshes immediately and then on every interval until ctx is done.
// Refresh errors are logged and do not stop the loop.
func (t *Tracker) Run(ctx context.Context) error {
	log.Info().Dur("interval", t.interval).Msg("Watching saved variables")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		sum, err := t.Refresh(ctx)
		switch {
		case ctx.Err() != nil:
			log.Info().Msg("Stopped watching")
			return nil
		case err != nil:
			log.Error().Err(err).Msg("Refresh failed")
		case sum.Snapshots > 0 || sum.Delivered:
			log.Info().
				Int("snapshots", sum.Snapshots).
				Bool("delivered", sum.Delivered).
				Msg("Equipment changed")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Stopped watching")
			return nil
		case <-ticker.C:
		}
	}
}
