// Package results persists per-profile run outcomes to the results
// workbook. Storage is a read-merge-write of the whole sheet keyed by
// profile name, so the file always holds exactly one row per profile,
// reflecting that profile's most recent run.
package results

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
)

const (
	sheetName = "Results"

	checkMark = "✓"
	crossMark = "✗"
	notAvail  = "N/A"
)

var header = []string{
	"ProfileName", "Email",
	"Login_Success", "CheckIn_Success", "Convert_Success",
	"SHARE_Points", "CheckIn_Streak", "Last_Check_In", "Error",
}

// column widths, in the header's order
var columnWidths = []float64{15, 30, 12, 12, 12, 12, 12, 20, 30}

// Store writes run outcomes to an xlsx file. Upserts are serialized
// internally; concurrent pipeline completions never lose rows to an
// overlapping read-merge-write cycle.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store writing to path. The file is created on the
// first Upsert if it does not exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the output file location.
func (s *Store) Path() string {
	return s.path
}

// LoadExisting reads the current persisted history keyed by profile
// name. A missing or unreadable file yields an empty map so a first run
// starts clean; losing a corrupt history is acceptable, losing new
// results is not.
func (s *Store) LoadExisting() map[string]domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// Upsert merges the given results into the persisted set and rewrites
// the file. Safe to call once per completed profile.
func (s *Store) Upsert(results ...domain.Result) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.readAll()
	for _, r := range results {
		existing[r.Key()] = r
	}
	if err := s.writeAll(existing); err != nil {
		return fmt.Errorf("saving results: %w", err)
	}
	return nil
}

// readAll loads the sheet, tolerating a missing or malformed file.
func (s *Store) readAll() map[string]domain.Result {
	out := make(map[string]domain.Result)

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return out
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil || len(rows) < 2 {
		return out
	}

	for _, row := range rows[1:] {
		r, ok := parseRow(row)
		if !ok {
			continue
		}
		out[r.Key()] = r
	}
	return out
}

func parseRow(row []string) (domain.Result, bool) {
	get := func(i int) string {
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	name := get(0)
	if name == "" {
		return domain.Result{}, false
	}

	points, _ := strconv.ParseFloat(strings.ReplaceAll(get(5), ",", ""), 64)
	ts, _ := time.ParseInLocation(domain.TimestampLayout, get(7), time.Local)

	return domain.Result{
		ProfileName:   name,
		Email:         get(1),
		LoginOK:       get(2) == checkMark,
		CheckInOK:     get(3) == checkMark,
		ConvertOK:     get(4) == checkMark,
		SharePoints:   points,
		CheckInStreak: get(6),
		Timestamp:     ts,
		Error:         get(8),
	}, true
}

// writeAll rewrites the whole sheet from the merged map.
func (s *Store) writeAll(all map[string]domain.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return err
	}

	if err := setRow(f, 1, header); err != nil {
		return err
	}

	// Stable order: sorted by key, so diffs of the file stay readable.
	keys := sortedKeys(all)
	for i, key := range keys {
		r := all[key]
		streak := r.CheckInStreak
		if streak == "" {
			streak = notAvail
		}
		name := r.ProfileName
		if name == "" {
			name = r.ProfileID
		}
		row := []any{
			name, r.Email,
			mark(r.LoginOK), mark(r.CheckInOK), mark(r.ConvertOK),
			r.SharePoints, streak,
			r.Timestamp.Format(domain.TimestampLayout), r.Error,
		}
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}

	for i, w := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, col, col, w); err != nil {
			return err
		}
	}

	// Write via temp file + rename so a crash mid-write cannot leave a
	// truncated workbook behind.
	tmp := s.path + ".tmp"
	if err := f.SaveAs(tmp); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func setRow[T any](f *excelize.File, rowNum int, values []T) error {
	cellRef, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheetName, cellRef, &values)
}

func sortedKeys(m map[string]domain.Result) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mark(ok bool) string {
	if ok {
		return checkMark
	}
	return crossMark
}
