package adwflow

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// hexAlphabet is the alphabet for workflow ids.
const hexAlphabet = "0123456789abcdef"

// idLength is the length of a workflow id.
const idLength = 8

// ModelSet selects between the standard and the more powerful model tier.
type ModelSet string

const (
	ModelSetBase  ModelSet = "base"
	ModelSetHeavy ModelSet = "heavy"
)

// State is the durable record of one workflow run.
//
// Field names are the stable on-disk schema; readers must tolerate unknown
// fields and missing optional fields. ID never changes after creation.
// BranchName and PlanFile, once set, are treated as already-satisfied step
// outputs on re-entry and are not overwritten.
type State struct {
	ID            string     `json:"adw_id"`
	IssueNumber   int        `json:"issue_number,omitempty"`
	IssueClass    IssueClass `json:"issue_class,omitempty"`
	BranchName    string     `json:"branch_name,omitempty"`
	PlanFile      string     `json:"plan_file,omitempty"`
	ModelSet      ModelSet   `json:"model_set,omitempty"`
	AllRuns       []string   `json:"all_adws,omitempty"`
	WorktreePath  string     `json:"worktree_path,omitempty"`
	LastUpdatedBy string     `json:"last_updated_by,omitempty"`
}

// NewState creates a fresh state record for the given workflow id.
func NewState(id string) *State {
	return &State{
		ID:       id,
		ModelSet: ModelSetBase,
	}
}

// WorkingDir returns the directory the workflow operates in: the worktree
// path if one is set, otherwise fallback.
func (s *State) WorkingDir(fallback string) string {
	if s.WorktreePath != "" {
		return s.WorktreePath
	}
	return fallback
}

// RecordRun appends a related workflow id to the audit list if not present.
func (s *State) RecordRun(id string) {
	for _, existing := range s.AllRuns {
		if existing == id {
			return
		}
	}
	s.AllRuns = append(s.AllRuns, id)
}

// WriteTransfer serializes the state as a single JSON line, the transfer
// form piped between independently invoked processes of the same workflow.
func (s *State) WriteTransfer(w io.Writer) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// MergeTransfer reads one JSON line from r and merges it over the receiver.
// Fields present in the transferred form win; absent fields keep their
// current values. Malformed or absent input is treated as no override.
func (s *State) MergeTransfer(r io.Reader) {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if len(line) == 0 && err != nil {
		return
	}
	// Unmarshal into the existing struct: only fields present in the JSON
	// are overwritten, which is exactly the merge semantics we want.
	id := s.ID
	if err := json.Unmarshal(line, s); err != nil {
		return
	}
	if s.ID == "" {
		s.ID = id
	}
}

// Store persists workflow state under a per-id namespace:
// {root}/{id}/state.json.
type Store struct {
	root string
}

// DefaultStateRoot is the directory workflow state is kept under.
const DefaultStateRoot = "agents"

// NewStore creates a store rooted at the given directory.
// An empty root uses DefaultStateRoot.
func NewStore(root string) *Store {
	if root == "" {
		root = DefaultStateRoot
	}
	return &Store{root: root}
}

// Root returns the store's root directory.
func (st *Store) Root() string {
	return st.root
}

// Path returns the state file path for a workflow id.
func (st *Store) Path(id string) string {
	return filepath.Join(st.root, id, "state.json")
}

// Exists reports whether a state file exists for the id.
func (st *Store) Exists(id string) bool {
	_, err := os.Stat(st.Path(id))
	return err == nil
}

// Load returns the persisted state for id, or a fresh default record if
// none exists. A missing record is not an error.
func (st *Store) Load(id string) (*State, error) {
	data, err := os.ReadFile(st.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(id), nil
		}
		return nil, fmt.Errorf("read state %s: %w", id, err)
	}

	state := NewState(id)
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", id, err)
	}
	if state.ID == "" {
		state.ID = id
	}
	return state, nil
}

// Save writes the full record, stamping LastUpdatedBy. The write goes to a
// temp file in the same directory and is renamed into place so a reader
// never observes a partially written file. The per-id namespace directory
// is created on first write.
func (st *Store) Save(state *State, updatedBy string) error {
	if updatedBy != "" {
		state.LastUpdatedBy = updatedBy
	}

	dir := filepath.Dir(st.Path(state.ID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmpName, st.Path(state.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// EnsureID returns a usable workflow id. If provided refers to existing
// state, it is reused as-is. Otherwise a new 8-hex-char id is generated and
// its state initialized on disk.
func (st *Store) EnsureID(provided string) (string, error) {
	if provided != "" && st.Exists(provided) {
		return provided, nil
	}

	id, err := nanoid.Generate(hexAlphabet, idLength)
	if err != nil {
		return "", fmt.Errorf("generate workflow id: %w", err)
	}
	if err := st.Save(NewState(id), "ensure_id"); err != nil {
		return "", err
	}
	return id, nil
}
