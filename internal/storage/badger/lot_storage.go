package badger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/chaintax/chaintax/internal/models"
)

// disposalRecord wraps a LotDisposal with its calculation id; the model
// itself does not carry one.
type disposalRecord struct {
	CalculationID string             `badgerholdIndex:"CalculationID"`
	Disposal      models.LotDisposal `json:"disposal"`
}

// transferRecord wraps a LotTransfer with its calculation id.
type transferRecord struct {
	CalculationID string             `badgerholdIndex:"CalculationID"`
	Transfer      models.LotTransfer `json:"transfer"`
}

func (s *Store) SaveLot(_ context.Context, lot *models.AcquisitionLot) error {
	if err := s.db.Upsert(lot.ID, lot); err != nil {
		return fmt.Errorf("failed to save lot '%s': %w", lot.ID, err)
	}
	return nil
}

func (s *Store) ListLotsByCalculation(_ context.Context, calculationID string) ([]*models.AcquisitionLot, error) {
	var lots []models.AcquisitionLot
	if err := s.db.Find(&lots, badgerhold.Where("CalculationID").Eq(calculationID)); err != nil {
		return nil, fmt.Errorf("failed to list lots for calculation '%s': %w", calculationID, err)
	}
	out := make([]*models.AcquisitionLot, len(lots))
	for i := range lots {
		out[i] = &lots[i]
	}
	return out, nil
}

func (s *Store) SaveDisposal(_ context.Context, calculationID string, disposal *models.LotDisposal) error {
	record := disposalRecord{CalculationID: calculationID, Disposal: *disposal}
	if err := s.db.Upsert(uuid.NewString(), record); err != nil {
		return fmt.Errorf("failed to save disposal for lot '%s': %w", disposal.LotID, err)
	}
	return nil
}

func (s *Store) ListDisposalsByCalculation(_ context.Context, calculationID string) ([]*models.LotDisposal, error) {
	var records []disposalRecord
	if err := s.db.Find(&records, badgerhold.Where("CalculationID").Eq(calculationID)); err != nil {
		return nil, fmt.Errorf("failed to list disposals for calculation '%s': %w", calculationID, err)
	}
	out := make([]*models.LotDisposal, len(records))
	for i := range records {
		out[i] = &records[i].Disposal
	}
	return out, nil
}

func (s *Store) SaveTransfer(_ context.Context, calculationID string, transfer *models.LotTransfer) error {
	record := transferRecord{CalculationID: calculationID, Transfer: *transfer}
	if err := s.db.Upsert(transfer.ID, record); err != nil {
		return fmt.Errorf("failed to save transfer '%s': %w", transfer.ID, err)
	}
	return nil
}

func (s *Store) ListTransfersByLink(_ context.Context, calculationID, linkID string) ([]*models.LotTransfer, error) {
	var records []transferRecord
	if err := s.db.Find(&records, badgerhold.Where("CalculationID").Eq(calculationID)); err != nil {
		return nil, fmt.Errorf("failed to list transfers for calculation '%s': %w", calculationID, err)
	}
	var out []*models.LotTransfer
	for i := range records {
		if records[i].Transfer.LinkID == linkID {
			out = append(out, &records[i].Transfer)
		}
	}
	return out, nil
}
