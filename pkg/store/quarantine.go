package store

import (
	"context"
	"errors"
)

// The ledger is small and append-mostly, so a whole-file rewrite per change
// keeps the on-disk format a plain JSON array.

func (s *DocumentStore) appendQuarantine(record QuarantineRecord) error {
	s.quarMu.Lock()
	defer s.quarMu.Unlock()

	records := s.readQuarantineLocked()
	records = append(records, record)
	return writeFileAtomic(s.quarantinePath, records)
}

// QuarantineRecords returns the current quarantine ledger.
func (s *DocumentStore) QuarantineRecords() []QuarantineRecord {
	s.quarMu.Lock()
	defer s.quarMu.Unlock()
	return s.readQuarantineLocked()
}

// ApproveQuarantined removes the ledger record for docID and re-ingests the
// given text with quarantine disabled for this one call, so a reviewed
// document can enter the index with its suspicious chunks neutralized by
// sanitization. The caller supplies the original text; the ledger keeps only
// provenance, never content.
func (s *DocumentStore) ApproveQuarantined(ctx context.Context, docID, text string) (IngestResult, error) {
	s.quarMu.Lock()
	records := s.readQuarantineLocked()
	found := false
	kept := records[:0]
	var source string
	for _, r := range records {
		if r.DocID == docID {
			found = true
			source = r.Source
			continue
		}
		kept = append(kept, r)
	}
	if found {
		if err := writeFileAtomic(s.quarantinePath, kept); err != nil {
			s.quarMu.Unlock()
			return IngestResult{}, err
		}
	}
	s.quarMu.Unlock()

	if !found {
		return IngestResult{}, errors.New("no quarantine record for document " + docID)
	}

	return s.IngestText(ctx, text, source, IngestOptions{
		DocID:            docID,
		Replace:          true,
		bypassQuarantine: true,
	})
}

func (s *DocumentStore) readQuarantineLocked() []QuarantineRecord {
	var records []QuarantineRecord
	if err := readFileJSON(s.quarantinePath, &records); err != nil {
		s.logger.Warn().Err(err).Str("path", s.quarantinePath).Msg("Quarantine ledger unreadable")
	}
	return records
}
