package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/whereabouts/internal/common"
	"github.com/Veraticus/whereabouts/internal/model"
)

// StoreProvider serves the latest stored fix while it is younger than maxAge.
type StoreProvider struct {
	store  FixStore
	now    func() time.Time
	maxAge time.Duration
}

// NewStoreProvider creates a StoreProvider. A zero maxAge accepts fixes of any age.
func NewStoreProvider(store FixStore, maxAge time.Duration) *StoreProvider {
	return &StoreProvider{store: store, maxAge: maxAge, now: time.Now}
}

// CurrentFix returns the latest fix or common.ErrLocationUnavailable.
func (p *StoreProvider) CurrentFix(ctx context.Context) (*model.Fix, error) {
	fix, err := p.store.Latest(ctx)
	if errors.Is(err, ErrNoFix) {
		return nil, common.ErrLocationUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrLocationUnavailable, err)
	}

	if p.maxAge > 0 {
		if age := p.now().Sub(fix.RecordedAt); age > p.maxAge {
			slog.Debug("Latest fix is stale", "age", age, "max_age", p.maxAge)
			return nil, fmt.Errorf("%w: fix is %s old", common.ErrLocationUnavailable, age.Round(time.Second))
		}
	}
	return fix, nil
}

// StaticProvider always returns the same fix. The CLI uses it for checks
// with an explicit position.
type StaticProvider struct {
	Fix model.Fix
}

// CurrentFix returns a copy of the configured fix.
func (p StaticProvider) CurrentFix(_ context.Context) (*model.Fix, error) {
	fix := p.Fix
	return &fix, nil
}
