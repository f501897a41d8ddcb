// Package credentials loads GPM profile accounts from the credentials
// workbook. The sheet has four columns: ProfileName, ProfileID, Namso
// (the account email, or "No" for profiles without one), and Password.
package credentials

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
)

// Store indexes credentials by profile id and by profile name.
// Read-only after Load; safe to share across pipelines.
type Store struct {
	mu       sync.RWMutex
	byID     map[string]domain.Credential
	nameToID map[string]string
	ordered  []domain.Credential
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		byID:     make(map[string]domain.Credential),
		nameToID: make(map[string]string),
	}
}

// Load parses the workbook at path and atomically replaces the index.
// On any parse failure the previous contents are discarded rather than
// left half-replaced, so a stale sheet is never run against the site.
func (s *Store) Load(path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		s.clear()
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		s.clear()
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	byID := make(map[string]domain.Credential)
	nameToID := make(map[string]string)
	var ordered []domain.Credential

	if len(rows) > 0 {
		cols := headerIndex(rows[0])
		for _, row := range rows[1:] {
			cred, ok := parseRow(row, cols)
			if !ok {
				continue
			}
			if _, dup := byID[cred.ProfileID]; dup {
				continue
			}
			byID[cred.ProfileID] = cred
			if cred.ProfileName != "" {
				nameToID[cred.ProfileName] = cred.ProfileID
			}
			ordered = append(ordered, cred)
		}
	}

	s.mu.Lock()
	s.byID = byID
	s.nameToID = nameToID
	s.ordered = ordered
	s.mu.Unlock()
	return nil
}

func (s *Store) clear() {
	s.mu.Lock()
	s.byID = make(map[string]domain.Credential)
	s.nameToID = make(map[string]string)
	s.ordered = nil
	s.mu.Unlock()
}

// columnIndexes locates the known columns by header name.
type columnIndexes struct {
	name     int
	id       int
	account  int
	password int
}

// headerIndex resolves column positions case-insensitively, accepting
// the aliases seen in real credential sheets.
func headerIndex(header []string) columnIndexes {
	cols := columnIndexes{name: -1, id: -1, account: -1, password: -1}
	for i, h := range header {
		switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(h), "_", "")) {
		case "profilename":
			cols.name = i
		case "profileid":
			cols.id = i
		case "namso", "email", "account":
			cols.account = i
		case "password":
			cols.password = i
		}
	}
	return cols
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseRow converts one sheet row into a Credential. Rows whose account
// marker says "no", or that miss any required field, are skipped.
func parseRow(row []string, cols columnIndexes) (domain.Credential, bool) {
	account := cell(row, cols.account)
	if strings.EqualFold(account, "no") {
		return domain.Credential{}, false
	}

	cred := domain.Credential{
		ProfileName: cell(row, cols.name),
		ProfileID:   cell(row, cols.id),
		Email:       account,
		Password:    cell(row, cols.password),
	}
	if cred.ProfileID == "" || cred.Email == "" || cred.Password == "" {
		return domain.Credential{}, false
	}
	return cred, true
}

// ByID looks up a credential by GPM profile id.
func (s *Store) ByID(id string) (domain.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	return c, ok
}

// ByName looks up a credential by profile name.
func (s *Store) ByName(name string) (domain.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.nameToID[name]
	if !ok {
		return domain.Credential{}, false
	}
	c, ok := s.byID[id]
	return c, ok
}

// All returns every credential in source row order.
func (s *Store) All() []domain.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Credential, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Count returns the number of loaded credentials.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}
