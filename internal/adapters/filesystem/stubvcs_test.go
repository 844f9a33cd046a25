package filesystem_test

import (
	"context"

	"github.com/example/conveyor/internal/ports/secondary"
)

// stubVCS is a no-op VersionControl for embedding in test fakes.
type stubVCS struct{}

func (stubVCS) Pull(ctx context.Context) error                     { return nil }
func (stubVCS) Checkout(ctx context.Context, branch string) error  { return nil }
func (stubVCS) CreateBranch(ctx context.Context, name, base string) error { return nil }
func (stubVCS) StageAll(ctx context.Context) error                 { return nil }
func (stubVCS) Commit(ctx context.Context, message string) (*secondary.CommitInfo, error) {
	return &secondary.CommitInfo{Hash: "deadbeef", Message: message}, nil
}
func (stubVCS) Push(ctx context.Context, branch string) error { return nil }
func (stubVCS) GetStatus(ctx context.Context) (*secondary.RepoStatus, error) {
	return &secondary.RepoStatus{Clean: true, Branch: "main"}, nil
}
func (stubVCS) CloneRepository(ctx context.Context, url, path string) error { return nil }
func (stubVCS) SwitchRepository(path string) (restore func())               { return func() {} }
func (stubVCS) DiscardChanges(ctx context.Context) error                    { return nil }
func (stubVCS) SearchInFiles(ctx context.Context, term, filePattern string) ([]secondary.SearchHit, error) {
	return nil, nil
}
func (stubVCS) ListFiles(ctx context.Context, pattern string) ([]string, error) { return nil, nil }
func (stubVCS) ReadFile(ctx context.Context, path string) (string, error)       { return "", nil }
