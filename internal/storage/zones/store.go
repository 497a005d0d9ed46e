// Package zones persists buy-zone and buy-band definitions. Definitions are
// mutable until deleted, so they live in a plain JSON file per portfolio
// written atomically via a temp file, not in the WAL.
package zones

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mpared/folio/internal/domain"
)

const defaultZoneDir = "./wal/zones"

// Store is the file-backed definition store.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the definition store under the provided directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = defaultZoneDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create zone store dir")
	}
	return &Store{dir: dir}, nil
}

// State is everything persisted for one portfolio.
type State struct {
	Zones []domain.Zone    `json:"zones"`
	Bands []domain.BuyBand `json:"bands"`
}

func (s *Store) path(portfolio string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.json", sanitizeName(portfolio)))
}

func (s *Store) load(portfolio string) (State, error) {
	payload, err := os.ReadFile(s.path(portfolio))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, nil
		}
		return State{}, errors.Wrap(err, "read zone definitions")
	}
	if len(payload) == 0 {
		return State{}, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return State{}, errors.Wrap(err, "decode zone definitions")
	}
	return state, nil
}

func (s *Store) save(portfolio string, state State) error {
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode zone definitions")
	}

	path := s.path(portfolio)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write zone definitions temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "persist zone definitions")
	}
	return nil
}

// Zones returns a portfolio's zone definitions.
func (s *Store) Zones(portfolio string) ([]domain.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load(portfolio)
	if err != nil {
		return nil, err
	}
	return state.Zones, nil
}

// SaveZones validates and replaces a portfolio's zone set. Write-time
// validation is the only gate: the planner itself trusts its inputs.
func (s *Store) SaveZones(portfolio string, zones []domain.Zone) error {
	for i := range zones {
		zones[i].Portfolio = portfolio
		if zones[i].ID == "" {
			zones[i].ID = uuid.NewString()
		}
	}
	if err := domain.ValidateZoneSet(zones); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load(portfolio)
	if err != nil {
		return err
	}
	state.Zones = zones
	return s.save(portfolio, state)
}

// MarkZoneExecuted flips a zone's executed flag.
func (s *Store) MarkZoneExecuted(portfolio, zoneID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load(portfolio)
	if err != nil {
		return err
	}
	for i := range state.Zones {
		if state.Zones[i].ID == zoneID {
			state.Zones[i].Executed = true
			return s.save(portfolio, state)
		}
	}
	return fmt.Errorf("zone %s not found in portfolio %s", zoneID, portfolio)
}

// Bands returns a portfolio's buy-band definitions.
func (s *Store) Bands(portfolio string) ([]domain.BuyBand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load(portfolio)
	if err != nil {
		return nil, err
	}
	return state.Bands, nil
}

// SaveBands replaces a portfolio's band set.
func (s *Store) SaveBands(portfolio string, bands []domain.BuyBand) error {
	for i := range bands {
		bands[i].Portfolio = portfolio
		if bands[i].ID == "" {
			bands[i].ID = uuid.NewString()
		}
		if !bands[i].TargetUSD.IsPositive() {
			return fmt.Errorf("band %s: target price must be positive", bands[i].ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load(portfolio)
	if err != nil {
		return err
	}
	state.Bands = bands
	return s.save(portfolio, state)
}

// MarkBandExecuted flips a band's executed flag, moving it to EXECUTED.
func (s *Store) MarkBandExecuted(portfolio, bandID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load(portfolio)
	if err != nil {
		return err
	}
	for i := range state.Bands {
		if state.Bands[i].ID == bandID {
			state.Bands[i].Executed = true
			return s.save(portfolio, state)
		}
	}
	return fmt.Errorf("band %s not found in portfolio %s", bandID, portfolio)
}

func sanitizeName(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))

	var b strings.Builder
	prevUnderscore := false
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}

	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "default"
	}
	return name
}
