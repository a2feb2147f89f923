package adwflow

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitContext runs git plumbing for a repository. All commands execute in
// the context's working directory, which may be a worktree of the main
// repository.
type GitContext struct {
	repoPath string // Path to the main repository
	workDir  string // Working directory for commands (defaults to repoPath)
}

// NewGitContext creates a git context for the repository at repoPath.
// Returns ErrNotGitRepo if the path is not inside a git repository.
func NewGitContext(repoPath string) (*GitContext, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = absPath
	if err := cmd.Run(); err != nil {
		return nil, ErrNotGitRepo
	}

	return &GitContext{repoPath: absPath, workDir: absPath}, nil
}

// RepoPath returns the path to the main repository.
func (g *GitContext) RepoPath() string {
	return g.repoPath
}

// WorkDir returns the current working directory for git commands.
func (g *GitContext) WorkDir() string {
	return g.workDir
}

// InDir returns a GitContext that runs commands in dir. Used to operate in
// an isolated worktree.
func (g *GitContext) InDir(dir string) *GitContext {
	if dir == "" {
		return g
	}
	return &GitContext{repoPath: g.repoPath, workDir: dir}
}

// CurrentBranch returns the current branch name.
func (g *GitContext) CurrentBranch() (string, error) {
	branch, err := g.runGit("branch", "--show-current")
	if err != nil {
		return "", &GitError{Op: "get current branch", Err: err}
	}
	return branch, nil
}

// BranchExists checks if a branch exists locally.
func (g *GitContext) BranchExists(name string) bool {
	_, err := g.runGit("rev-parse", "--verify", name)
	return err == nil
}

// CreateBranch creates the branch and checks it out. If the branch already
// exists it is checked out instead; creation is idempotent.
func (g *GitContext) CreateBranch(name string) error {
	if g.BranchExists(name) {
		if _, err := g.runGit("checkout", name); err != nil {
			return &GitError{Op: "checkout branch", Err: err}
		}
		return nil
	}
	if _, err := g.runGit("checkout", "-b", name); err != nil {
		return &GitError{Op: "create branch", Err: err}
	}
	return nil
}

// MainBranch detects the main branch name (main or master), defaulting to
// main when neither exists.
func (g *GitContext) MainBranch() string {
	if g.BranchExists("main") {
		return "main"
	}
	if g.BranchExists("master") {
		return "master"
	}
	return "main"
}

// HasUncommittedChanges reports whether the working tree has staged or
// unstaged changes.
func (g *GitContext) HasUncommittedChanges() bool {
	if _, err := g.runGit("diff", "--quiet"); err != nil {
		return true
	}
	if _, err := g.runGit("diff", "--cached", "--quiet"); err != nil {
		return true
	}
	return false
}

// HeadCommit returns the current HEAD commit SHA.
func (g *GitContext) HeadCommit() (string, error) {
	sha, err := g.runGit("rev-parse", "HEAD")
	if err != nil {
		return "", &GitError{Op: "get HEAD commit", Err: err}
	}
	return sha, nil
}

// CommitAll stages all changes and commits them with the given message,
// returning the new commit SHA. Returns ErrNothingToCommit when the tree
// is clean.
func (g *GitContext) CommitAll(message string) (string, error) {
	if _, err := g.runGit("add", "-A"); err != nil {
		return "", &GitError{Op: "stage all", Err: err}
	}

	if _, err := g.runGit("diff", "--cached", "--quiet"); err == nil {
		return "", ErrNothingToCommit
	}

	output, err := g.runGit("commit", "-m", message)
	if err != nil {
		return "", &GitError{Op: "commit", Output: output, Err: err}
	}

	return g.HeadCommit()
}

// runGit executes a git command and returns trimmed stdout.
func (g *GitContext) runGit(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = err.Error()
		}
		return strings.TrimSpace(stdout.String()), fmt.Errorf("git %s: %s", strings.Join(args, " "), errMsg)
	}

	return strings.TrimSpace(stdout.String()), nil
}
