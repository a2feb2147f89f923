package adwflow

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestStore_LoadMissingReturnsDefault(t *testing.T) {
	store := NewStore(t.TempDir())

	state, err := store.Load("abc12345")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.ID != "abc12345" {
		t.Errorf("ID = %q, want %q", state.ID, "abc12345")
	}
	if state.ModelSet != ModelSetBase {
		t.Errorf("ModelSet = %q, want %q", state.ModelSet, ModelSetBase)
	}
	if state.BranchName != "" || state.PlanFile != "" {
		t.Error("fresh state should have no step outputs")
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	state := NewState("abc12345")
	state.IssueNumber = 42
	state.IssueClass = ClassFeature
	state.BranchName = "feat-42-abc12345-add-login"
	state.PlanFile = "specs/plan.md"
	state.ModelSet = ModelSetHeavy
	state.AllRuns = []string{"abc12345"}
	state.WorktreePath = "/tmp/worktree"

	if err := store.Save(state, "test"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load("abc12345")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !reflect.DeepEqual(loaded.copyWithoutRuns(), state.copyWithoutRuns()) {
		t.Errorf("loaded = %+v, want %+v", loaded, state)
	}
	if len(loaded.AllRuns) != 1 || loaded.AllRuns[0] != "abc12345" {
		t.Errorf("AllRuns = %v, want [abc12345]", loaded.AllRuns)
	}
	if loaded.LastUpdatedBy != "test" {
		t.Errorf("LastUpdatedBy = %q, want %q", loaded.LastUpdatedBy, "test")
	}
}

// copyWithoutRuns strips the slice field so states compare with ==.
func (s *State) copyWithoutRuns() *State {
	c := *s
	c.AllRuns = nil
	c.LastUpdatedBy = ""
	return &c
}

func TestStore_SaveStampsUpdatedBy(t *testing.T) {
	store := NewStore(t.TempDir())

	state := NewState("deadbeef")
	if err := store.Save(state, "classify"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if state.LastUpdatedBy != "classify" {
		t.Errorf("LastUpdatedBy = %q, want %q", state.LastUpdatedBy, "classify")
	}
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	if err := store.Save(NewState("deadbeef"), "test"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "deadbeef"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "state.json" {
		t.Errorf("namespace dir entries = %v, want only state.json", entries)
	}
}

func TestStore_EnsureID_ReusesExisting(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Save(NewState("cafe0123"), "test"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	id, err := store.EnsureID("cafe0123")
	if err != nil {
		t.Fatalf("EnsureID: %v", err)
	}
	if id != "cafe0123" {
		t.Errorf("id = %q, want %q", id, "cafe0123")
	}
}

func TestStore_EnsureID_GeneratesHexID(t *testing.T) {
	store := NewStore(t.TempDir())

	id, err := store.EnsureID("")
	if err != nil {
		t.Fatalf("EnsureID: %v", err)
	}
	if len(id) != 8 {
		t.Errorf("id length = %d, want 8", len(id))
	}
	if strings.Trim(id, "0123456789abcdef") != "" {
		t.Errorf("id %q contains non-hex characters", id)
	}
	if !store.Exists(id) {
		t.Error("EnsureID should initialize state on disk")
	}

	// An unknown provided id is replaced, not adopted.
	id2, err := store.EnsureID("zzzzzzzz")
	if err != nil {
		t.Fatalf("EnsureID: %v", err)
	}
	if id2 == "zzzzzzzz" {
		t.Error("EnsureID should not adopt an id with no existing state")
	}
}

func TestState_WriteTransferIsSingleLine(t *testing.T) {
	state := NewState("abc12345")
	state.IssueNumber = 7

	var buf bytes.Buffer
	if err := state.WriteTransfer(&buf); err != nil {
		t.Fatalf("WriteTransfer: %v", err)
	}

	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		t.Error("transfer form should end with a newline")
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("transfer form should be one line, got %q", out)
	}
}

func TestState_MergeTransfer(t *testing.T) {
	state := NewState("abc12345")
	state.IssueNumber = 7
	state.BranchName = "feat-7-abc12345-existing"

	// Transferred fields win, absent fields retain existing values.
	state.MergeTransfer(strings.NewReader(`{"plan_file":"specs/plan.md","model_set":"heavy"}` + "\n"))

	if state.PlanFile != "specs/plan.md" {
		t.Errorf("PlanFile = %q, want %q", state.PlanFile, "specs/plan.md")
	}
	if state.ModelSet != ModelSetHeavy {
		t.Errorf("ModelSet = %q, want %q", state.ModelSet, ModelSetHeavy)
	}
	if state.IssueNumber != 7 {
		t.Errorf("IssueNumber = %d, want 7 (absent field must be retained)", state.IssueNumber)
	}
	if state.BranchName != "feat-7-abc12345-existing" {
		t.Errorf("BranchName = %q changed by merge", state.BranchName)
	}
}

func TestState_MergeTransferMalformedIsNoOp(t *testing.T) {
	state := NewState("abc12345")
	state.IssueNumber = 7

	state.MergeTransfer(strings.NewReader("not json at all\n"))
	if state.IssueNumber != 7 || state.ID != "abc12345" {
		t.Errorf("malformed transfer input should be ignored, state = %+v", state)
	}

	state.MergeTransfer(strings.NewReader(""))
	if state.IssueNumber != 7 {
		t.Error("absent transfer input should be ignored")
	}
}

func TestState_RecordRunDeduplicates(t *testing.T) {
	state := NewState("abc12345")
	state.RecordRun("abc12345")
	state.RecordRun("abc12345")
	state.RecordRun("feed0000")

	if len(state.AllRuns) != 2 {
		t.Errorf("AllRuns = %v, want two unique ids", state.AllRuns)
	}
}

func TestState_WorkingDir(t *testing.T) {
	state := NewState("abc12345")
	if got := state.WorkingDir("/repo"); got != "/repo" {
		t.Errorf("WorkingDir = %q, want fallback", got)
	}

	state.WorktreePath = "/tmp/wt"
	if got := state.WorkingDir("/repo"); got != "/tmp/wt" {
		t.Errorf("WorkingDir = %q, want worktree path", got)
	}
}
