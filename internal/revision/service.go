// Package revision keeps the edit history of every page in its own git repository.
package revision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	contentFile = "page.json"
	mainBranch  = "main"
)

var (
	// ErrNoHistory is returned for pages that have never been committed.
	ErrNoHistory = errors.New("page has no revision history")
	// ErrUnchanged is returned by Commit when the snapshot equals the head revision.
	ErrUnchanged = errors.New("snapshot unchanged")
)

// Snapshot is what one revision records about a page.
type Snapshot struct {
	Slug    string          `json:"slug"`
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content"`
}

type Info struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Tag struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Commit records snapshot as the new head of the page's history, creating the
// repository on first use.
func (s *Service) Commit(pageID string, snapshot Snapshot, author, message string) (Info, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.ensureRepo(pageID)
	if err != nil {
		return Info{}, err
	}

	if head, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true); err == nil {
		headCommit, err := repo.CommitObject(head.Hash())
		if err != nil {
			return Info{}, fmt.Errorf("load head commit: %w", err)
		}
		current, err := readSnapshot(headCommit)
		if err != nil {
			return Info{}, err
		}
		if !HasChanges(current, snapshot) {
			return toInfo(headCommit), ErrUnchanged
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Info{}, fmt.Errorf("open worktree: %w", err)
	}
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return Info{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), contentFile), append(payload, '\n'), 0o644); err != nil {
		return Info{}, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return Info{}, fmt.Errorf("git add snapshot: %w", err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@clubhouse.local", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return Info{}, fmt.Errorf("commit snapshot: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Info{}, fmt.Errorf("read commit object: %w", err)
	}
	return toInfo(commitObj), nil
}

// Head returns the latest snapshot of a page.
func (s *Service) Head(pageID string) (Snapshot, Info, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openRepo(pageID)
	if err != nil {
		return Snapshot{}, Info{}, err
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		return Snapshot{}, Info{}, fmt.Errorf("resolve %s: %w", mainBranch, ErrNoHistory)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return Snapshot{}, Info{}, fmt.Errorf("load commit object: %w", err)
	}
	snapshot, err := readSnapshot(commitObj)
	if err != nil {
		return Snapshot{}, Info{}, err
	}
	return snapshot, toInfo(commitObj), nil
}

// AtRevision returns the snapshot recorded by a commit hash, short hash or tag.
func (s *Service) AtRevision(pageID, rev string) (Snapshot, Info, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openRepo(pageID)
	if err != nil {
		return Snapshot{}, Info{}, err
	}
	hash, err := resolveRevision(repo, rev)
	if err != nil {
		return Snapshot{}, Info{}, err
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Snapshot{}, Info{}, fmt.Errorf("read commit %s: %w", rev, err)
	}
	snapshot, err := readSnapshot(commitObj)
	if err != nil {
		return Snapshot{}, Info{}, err
	}
	return snapshot, toInfo(commitObj), nil
}

// History lists revisions newest first. A limit of zero returns everything.
func (s *Service) History(pageID string, limit int) ([]Info, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openRepo(pageID)
	if err != nil {
		if errors.Is(err, ErrNoHistory) {
			return []Info{}, nil
		}
		return nil, err
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		return []Info{}, nil
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Info, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toInfo(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Tag marks a revision, for example as published. Tagging the same name twice is
// not an error.
func (s *Service) Tag(pageID, rev, name string) (Tag, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openRepo(pageID)
	if err != nil {
		return Tag{}, err
	}
	hash, err := resolveRevision(repo, rev)
	if err != nil {
		return Tag{}, err
	}
	_, err = repo.CreateTag(name, hash, &git.CreateTagOptions{
		Tagger: &object.Signature{
			Name:  "Clubhouse",
			Email: "clubhouse@localhost",
			When:  time.Now(),
		},
		Message: name,
	})
	if err != nil && !errors.Is(err, git.ErrTagExists) {
		return Tag{}, fmt.Errorf("create tag: %w", err)
	}
	return Tag{Name: name, Hash: shortHash(hash)}, nil
}

// Tags lists the tags of a page sorted by name.
func (s *Service) Tags(pageID string) ([]Tag, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openRepo(pageID)
	if err != nil {
		if errors.Is(err, ErrNoHistory) {
			return []Tag{}, nil
		}
		return nil, err
	}
	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer iter.Close()

	tags := make([]Tag, 0)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		if tagObj, err := repo.TagObject(hash); err == nil {
			hash = tagObj.Target
		}
		tags = append(tags, Tag{Name: ref.Name().Short(), Hash: shortHash(hash)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

func (s *Service) repoPath(pageID string) string {
	return filepath.Join(s.baseDir, pageID)
}

func (s *Service) pageLock(pageID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[pageID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[pageID] = lock
	return lock
}

func (s *Service) openRepo(pageID string) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.repoPath(pageID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNoHistory
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) ensureRepo(pageID string) (*git.Repository, error) {
	path := s.repoPath(pageID)
	if _, err := os.Stat(path); err == nil {
		return s.openRepo(pageID)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat repo path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(mainBranch)},
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func readSnapshot(commitObj *object.Commit) (Snapshot, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot bytes: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

// HasChanges compares two snapshots, ignoring JSON formatting differences.
func HasChanges(from, to Snapshot) bool {
	if from.Slug != to.Slug || from.Title != to.Title {
		return true
	}
	return !bytes.Equal(normalizeJSON(from.Content), normalizeJSON(to.Content))
}

func toInfo(commitObj *object.Commit) Info {
	return Info{
		Hash:      shortHash(commitObj.Hash),
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func shortHash(hash plumbing.Hash) string {
	return hash.String()[:7]
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "editor"
	}
	return string(out)
}

func normalizeJSON(doc json.RawMessage) []byte {
	if len(doc) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return doc
	}
	normalized, err := json.Marshal(parsed)
	if err != nil {
		return doc
	}
	return normalized
}

func resolveRevision(repo *git.Repository, rev string) (plumbing.Hash, error) {
	if len(rev) == 40 {
		return plumbing.NewHash(rev), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve revision %s: %w", rev, err)
	}
	return *resolved, nil
}
