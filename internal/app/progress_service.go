package app

import (
	"context"
	"fmt"

	"github.com/example/conveyor/internal/ports/primary"
	"github.com/example/conveyor/internal/ports/secondary"
)

// ProgressServiceImpl implements the primary ProgressService port on top of
// the durable progress log and the in-process notifier.
type ProgressServiceImpl struct {
	progressRepo secondary.ProgressRepository
	notifier     secondary.ProgressNotifier
}

// NewProgressService creates a ProgressService.
func NewProgressService(progressRepo secondary.ProgressRepository, notifier secondary.ProgressNotifier) *ProgressServiceImpl {
	return &ProgressServiceImpl{
		progressRepo: progressRepo,
		notifier:     notifier,
	}
}

// Latest returns the most recent progress entry for a ticket, or nil when
// the ticket has none.
func (s *ProgressServiceImpl) Latest(ctx context.Context, ticketID string) (*primary.ProgressView, error) {
	rec, err := s.progressRepo.Latest(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress for %s: %w", ticketID, err)
	}
	if rec == nil {
		return nil, nil
	}
	return progressToView(rec), nil
}

// History returns up to limit entries for a ticket, oldest first. The window
// is anchored at the newest entries, so a small limit shows the most recent
// activity.
func (s *ProgressServiceImpl) History(ctx context.Context, ticketID string, limit int) ([]*primary.ProgressView, error) {
	records, err := s.progressRepo.ListByTicket(ctx, ticketID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress for %s: %w", ticketID, err)
	}
	views := make([]*primary.ProgressView, len(records))
	for i, rec := range records {
		views[len(records)-1-i] = progressToView(rec)
	}
	return views, nil
}

// Follow subscribes to live progress for a ticket; an empty ticketID follows
// every ticket. The channel closes after stop is called.
func (s *ProgressServiceImpl) Follow(ctx context.Context, ticketID string) (<-chan *primary.ProgressView, func(), error) {
	records, stop := s.notifier.Subscribe(ticketID)

	views := make(chan *primary.ProgressView)
	go func() {
		defer close(views)
		for rec := range records {
			select {
			case views <- progressToView(rec):
			case <-ctx.Done():
				// Keep draining so the notifier never backs up on us.
			}
		}
	}()

	return views, stop, nil
}

var _ primary.ProgressService = (*ProgressServiceImpl)(nil)
