package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/chaintax/chaintax/internal/models"
)

func (s *Store) GetLink(_ context.Context, id string) (*models.TransactionLink, error) {
	var link models.TransactionLink
	if err := s.db.Get(id, &link); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("link '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get link '%s': %w", id, err)
	}
	return &link, nil
}

func (s *Store) SaveLink(_ context.Context, link *models.TransactionLink) error {
	now := time.Now()
	var existing models.TransactionLink
	if err := s.db.Get(link.ID, &existing); err == nil {
		link.CreatedAt = existing.CreatedAt
	} else if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now

	if err := s.db.Upsert(link.ID, link); err != nil {
		return fmt.Errorf("failed to save link '%s': %w", link.ID, err)
	}
	s.logger.Debug().
		Str("id", link.ID).
		Str("status", string(link.Status)).
		Str("source_tx", link.SourceTransactionID).
		Str("target_tx", link.TargetTransactionID).
		Msg("Link saved")
	return nil
}

func (s *Store) ListLinks(_ context.Context) ([]*models.TransactionLink, error) {
	var links []models.TransactionLink
	if err := s.db.Find(&links, nil); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return linkPointers(links), nil
}

func (s *Store) ListLinksByStatus(_ context.Context, status models.LinkStatus) ([]*models.TransactionLink, error) {
	var links []models.TransactionLink
	if err := s.db.Find(&links, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, fmt.Errorf("failed to list links with status '%s': %w", status, err)
	}
	return linkPointers(links), nil
}

func linkPointers(links []models.TransactionLink) []*models.TransactionLink {
	out := make([]*models.TransactionLink, len(links))
	for i := range links {
		out[i] = &links[i]
	}
	return out
}
