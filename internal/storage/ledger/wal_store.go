// Package ledger persists the append-only transaction log. Transactions are
// immutable once written; replay always reads the full history back.
package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/mpared/folio/internal/domain"
)

const (
	defaultLedgerDir   = "./wal/ledger"
	ledgerSegmentLimit = 10000
	ledgerMaxSegments  = 1000
	ledgerKeyPrefix    = "tx_"
)

// WALStore is the WAL-backed transaction log.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens the transaction log under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultLedgerDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: ledgerSegmentLimit,
		MaxSegments:      ledgerMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append validates and writes one transaction. An empty ID is assigned.
func (s *WALStore) Append(tx domain.Transaction) (domain.Transaction, error) {
	if s == nil || s.wal == nil {
		return domain.Transaction{}, errors.New("ledger store is not initialized")
	}
	if tx.Portfolio == "" {
		return domain.Transaction{}, fmt.Errorf("transaction portfolio is required")
	}
	if err := tx.Validate(); err != nil {
		return domain.Transaction{}, errors.Wrap(err, "invalid transaction")
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	payload, err := json.Marshal(tx)
	if err != nil {
		return domain.Transaction{}, errors.Wrap(err, "marshal transaction")
	}

	key := fmt.Sprintf("%s%s", ledgerKeyPrefix, tx.Portfolio)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return domain.Transaction{}, errors.Wrap(err, "write transaction")
	}
	return tx, nil
}

// All returns a portfolio's transactions ordered by ascending timestamp,
// ties kept in insertion order.
func (s *WALStore) All(portfolio string) ([]domain.Transaction, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("ledger store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	wantKey := ledgerKeyPrefix + portfolio

	var txs []domain.Transaction
	for idx := uint64(1); idx <= s.wal.CurrentIndex(); idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, ledgerKeyPrefix) {
			continue
		}
		if key != wantKey {
			continue
		}
		var tx domain.Transaction
		if err := json.Unmarshal(payload, &tx); err != nil {
			return nil, errors.Wrap(err, "decode transaction")
		}
		txs = append(txs, tx)
	}

	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.Before(txs[j].Timestamp)
	})
	return txs, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("ledger store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
