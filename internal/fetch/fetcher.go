package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Khamel83/atlas-sub014/internal/config"
	"github.com/Khamel83/atlas-sub014/internal/logging"
	"github.com/Khamel83/atlas-sub014/internal/services"
)

// Attempt records one method try, successful or not, for the item's audit
// trail. Attempts are ordered by start time.
type Attempt struct {
	Method    string
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// ChainError reports that every method in a fallback chain failed. It unwraps
// to the last underlying error, which drives retry classification.
type ChainError struct {
	Attempts []Attempt
	Last     error
}

func (e *ChainError) Error() string {
	methods := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		methods = append(methods, attempt.Method)
	}
	return fmt.Sprintf("all fetch methods failed (%s): %v", strings.Join(methods, ", "), e.Last)
}

func (e *ChainError) Unwrap() error { return e.Last }

// Fetcher walks a fallback chain, trying each registered method under a
// bounded timeout until one yields substantial content.
type Fetcher struct {
	methods       map[string]Method
	methodTimeout time.Duration
	minLength     int
	logger        *slog.Logger
}

// NewFetcher builds a fetcher over the given methods.
func NewFetcher(cfg *config.Config, logger *slog.Logger, methods ...Method) *Fetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	byName := make(map[string]Method, len(methods))
	for _, method := range methods {
		byName[method.Name()] = method
	}
	return &Fetcher{
		methods:       byName,
		methodTimeout: time.Duration(cfg.Fetch.MethodTimeout) * time.Second,
		minLength:     cfg.Fetch.MinContentLength,
		logger:        logging.NewComponentLogger(logger, "fetch"),
	}
}

// NewDefaultMethods constructs the standard method set from configuration,
// sharing one HTTP client. Per-method timeouts come from the fetcher's
// context deadline, not the client.
func NewDefaultMethods(cfg *config.Config) []Method {
	client := &http.Client{}
	return []Method{
		NewDirect(client, cfg.Fetch.UserAgent),
		NewRender(client, cfg.Fetch.RenderEndpoint),
		NewArchiveToday(client, cfg.Fetch.ArchiveTodayURL, cfg.Fetch.UserAgent),
		NewWayback(client, cfg.Fetch.WaybackURL, cfg.Fetch.UserAgent),
		NewResurrect(client, cfg.Fetch.ResurrectURL, cfg.Fetch.UserAgent),
	}
}

// Fetch tries each chain method in order and short-circuits on the first
// success. Content below the minimum length counts as a failure for that
// method even when the transport succeeded. When the whole chain fails the
// returned error is a *ChainError wrapping the last method's failure; the
// attempt log covers every try either way.
func (f *Fetcher) Fetch(ctx context.Context, target Target, chain []string) (*Result, []Attempt, error) {
	if len(chain) == 0 {
		return nil, nil, services.Wrap(services.ErrValidation, "fetch", "chain", "empty fallback chain", nil)
	}

	attempts := make([]Attempt, 0, len(chain))
	var lastErr error

	for _, name := range chain {
		method, ok := f.methods[name]
		started := time.Now()
		if !ok {
			err := services.Wrap(services.ErrValidation, "fetch", name, "unknown method", nil)
			attempts = append(attempts, Attempt{Method: name, StartedAt: started, Err: err})
			lastErr = err
			continue
		}

		methodCtx := ctx
		var cancel context.CancelFunc
		if f.methodTimeout > 0 {
			methodCtx, cancel = context.WithTimeout(ctx, f.methodTimeout)
		}
		result, err := method.Fetch(methodCtx, target)
		if cancel != nil {
			cancel()
		}
		elapsed := time.Since(started)

		if err == nil && len(result.Content) < f.minLength {
			err = services.Wrap(services.ErrTransient, "fetch", name,
				fmt.Sprintf("content below minimum length (%d < %d)", len(result.Content), f.minLength), nil)
		}

		if err != nil {
			attempts = append(attempts, Attempt{Method: name, StartedAt: started, Duration: elapsed, Err: err})
			lastErr = err
			f.logger.Debug("fetch method failed", logging.Args(
				logging.String(logging.FieldItemID, target.ItemID),
				logging.String(logging.FieldMethod, name),
				logging.Duration("duration", elapsed),
				logging.Error(err),
			)...)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		attempts = append(attempts, Attempt{Method: name, StartedAt: started, Duration: elapsed})
		f.logger.Info("fetch succeeded", logging.Args(
			logging.String(logging.FieldItemID, target.ItemID),
			logging.String(logging.FieldMethod, name),
			logging.Duration("duration", elapsed),
			logging.Int("content_length", len(result.Content)),
		)...)
		return result, attempts, nil
	}

	return nil, attempts, &ChainError{Attempts: attempts, Last: lastErr}
}
