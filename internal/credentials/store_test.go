package credentials

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// writeWorkbook creates a credentials sheet from rows, header included.
func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "credentials.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStore_Load(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"ProfileName", "ProfileID", "Namso", "Password"},
		{"Depin001", "id-001", "a@example.com", "pw1"},
		{"Depin002", "id-002", "No", "pw2"},        // marker says no account
		{"Depin003", "id-003", "c@example.com", ""}, // missing password
		{"Depin004", "id-004", "d@example.com", "pw4"},
	})

	store := NewStore()
	if err := store.Load(path); err != nil {
		t.Fatal(err)
	}

	if store.Count() != 2 {
		t.Fatalf("Count = %d, want 2", store.Count())
	}

	cred, ok := store.ByID("id-001")
	if !ok {
		t.Fatal("id-001 not found")
	}
	if cred.Email != "a@example.com" || cred.Password != "pw1" {
		t.Errorf("cred = %+v", cred)
	}

	cred, ok = store.ByName("Depin004")
	if !ok {
		t.Fatal("Depin004 not found")
	}
	if cred.ProfileID != "id-004" {
		t.Errorf("ProfileID = %q, want id-004", cred.ProfileID)
	}

	if _, ok := store.ByID("id-002"); ok {
		t.Error("id-002 should be skipped (marker = No)")
	}
	if _, ok := store.ByID("id-003"); ok {
		t.Error("id-003 should be skipped (no password)")
	}
}

func TestStore_AllPreservesRowOrder(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"ProfileName", "ProfileID", "Namso", "Password"},
		{"Depin003", "id-3", "c@x.com", "p"},
		{"Depin001", "id-1", "a@x.com", "p"},
		{"Depin002", "id-2", "b@x.com", "p"},
	})

	store := NewStore()
	if err := store.Load(path); err != nil {
		t.Fatal(err)
	}

	all := store.All()
	want := []string{"Depin003", "Depin001", "Depin002"}
	for i, name := range want {
		if all[i].ProfileName != name {
			t.Fatalf("All order = %v, want %v", all, want)
		}
	}
}

func TestStore_HeaderAliases(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"profile_name", "profile_id", "Email", "password"},
		{"Depin001", "id-1", "a@x.com", "p"},
	})

	store := NewStore()
	if err := store.Load(path); err != nil {
		t.Fatal(err)
	}
	if store.Count() != 1 {
		t.Errorf("Count = %d, want 1 (aliased headers)", store.Count())
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	store := NewStore()
	if err := store.Load(filepath.Join(t.TempDir(), "missing.xlsx")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStore_FailedReloadDiscardsPreviousIndex(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"ProfileName", "ProfileID", "Namso", "Password"},
		{"Depin001", "id-1", "a@x.com", "p"},
	})

	store := NewStore()
	if err := store.Load(path); err != nil {
		t.Fatal(err)
	}

	if err := store.Load(filepath.Join(t.TempDir(), "missing.xlsx")); err == nil {
		t.Fatal("expected error for missing file")
	}

	if store.Count() != 0 {
		t.Errorf("Count = %d, want 0 after failed reload", store.Count())
	}
	if _, ok := store.ByID("id-1"); ok {
		t.Error("stale entry survived failed reload")
	}
}

func TestStore_ReloadReplacesIndex(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"ProfileName", "ProfileID", "Namso", "Password"},
		{"Depin001", "id-1", "a@x.com", "p"},
	})

	store := NewStore()
	if err := store.Load(path); err != nil {
		t.Fatal(err)
	}

	path2 := writeWorkbook(t, [][]any{
		{"ProfileName", "ProfileID", "Namso", "Password"},
		{"Depin009", "id-9", "z@x.com", "p"},
	})
	if err := store.Load(path2); err != nil {
		t.Fatal(err)
	}

	if _, ok := store.ByID("id-1"); ok {
		t.Error("stale entry survived reload")
	}
	if _, ok := store.ByID("id-9"); !ok {
		t.Error("new entry missing after reload")
	}
}
