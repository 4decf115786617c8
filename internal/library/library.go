// Package library connects a typing session to the stored repositories.
package library

import (
	"context"
	"fmt"
	"sync"

	"github.com/verte-zerg/codetype/internal/importer"
	"github.com/verte-zerg/codetype/internal/logging"
	"github.com/verte-zerg/codetype/internal/model"
)

// Store is the persistence used by the library.
type Store interface {
	CreateRepository(ctx context.Context, repo model.Repository) (model.Repository, error)
	GetRepository(ctx context.Context, id int64) (model.Repository, error)
	GetFileItem(ctx context.Context, repositoryID, fileID int64) (model.FileItem, error)
	SetFileContent(ctx context.Context, repositoryID, fileID int64, content string, unsupported bool) (model.FileItem, error)
	SaveTypingProgress(ctx context.Context, repositoryID, fileID int64, req model.SaveRequest) (model.SaveResult, error)
}

// Import builds the repository described by p and stores it.
func Import(ctx context.Context, st Store, p importer.Preview) (model.Repository, error) {
	repo, err := importer.Build(p)
	if err != nil {
		return model.Repository{}, fmt.Errorf("failed to scan %s: %w", p.Source, err)
	}
	created, err := st.CreateRepository(ctx, repo)
	if err != nil {
		return model.Repository{}, err
	}
	logging.Info("imported repository %d (%s) at %s with %d files",
		created.ID, created.Name, created.CommitHash, len(model.FlattenFiles(created.FileItems)))
	return created, nil
}

// Service serves the files of one repository. It satisfies typing.Gateway
// and is safe for concurrent use.
type Service struct {
	store Store

	mu         sync.Mutex
	repository model.Repository
}

// New returns a service for repo.
func New(st Store, repo model.Repository) *Service {
	return &Service{store: st, repository: repo}
}

// Repository returns the repository the service is bound to.
func (s *Service) Repository() model.Repository {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repository
}

func (s *Service) setRepository(repo model.Repository) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repository = repo
}

// Refresh reloads the repository tree and progress.
func (s *Service) Refresh(ctx context.Context) (model.Repository, error) {
	repo, err := s.store.GetRepository(ctx, s.Repository().ID)
	if err != nil {
		return model.Repository{}, fmt.Errorf("failed to load repository: %w", err)
	}
	s.setRepository(repo)
	return repo, nil
}

// FetchFile returns a file with content and saved progress. Content is read
// from the source tree the first time a file is opened.
func (s *Service) FetchFile(ctx context.Context, fileID int64) (model.FileItem, error) {
	repo := s.Repository()
	item, err := s.store.GetFileItem(ctx, repo.ID, fileID)
	if err != nil {
		return model.FileItem{}, err
	}
	if !item.IsFile() || item.Content != nil {
		return item, nil
	}
	content, unsupported, err := importer.ReadContent(repo.URL, item.Path)
	if err != nil {
		logging.Error("read %s: %v", item.Path, err)
		return model.FileItem{}, err
	}
	if unsupported {
		logging.Info("marking %s unsupported: non-ASCII content", item.Path)
	}
	return s.store.SetFileContent(ctx, repo.ID, fileID, content, unsupported)
}

// SaveProgress persists a pause or completion of a file.
func (s *Service) SaveProgress(ctx context.Context, fileID int64, req model.SaveRequest) (model.SaveResult, error) {
	res, err := s.store.SaveTypingProgress(ctx, s.Repository().ID, fileID, req)
	if err != nil {
		logging.Error("save file %d (%s): %v", fileID, req.Status, err)
		return model.SaveResult{}, err
	}
	logging.Debug("saved file %d as %s at %d:%d", fileID, req.Status, req.TypingProgress.Row, req.TypingProgress.Column)
	if res.Repository != nil {
		s.setRepository(*res.Repository)
	}
	return res, nil
}
