package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Dosada05/playoff-engine/models"
	"github.com/Dosada05/playoff-engine/repositories"
	"github.com/Dosada05/playoff-engine/storage"
)

type ArchiveService interface {
	// Archive uploads the current document of a playoff.
	Archive(ctx context.Context, playoffID string) (*storage.UploadResult, error)
	// ArchiveSnapshot uploads an already loaded document.
	ArchiveSnapshot(ctx context.Context, p *models.Playoff) (*storage.UploadResult, error)
}

type archiveService struct {
	repo     repositories.PlayoffRepository
	uploader storage.FileUploader
	logger   *slog.Logger
}

// NewArchiveService returns a service that fails every call with
// ErrArchiveDisabled when uploader is nil.
func NewArchiveService(repo repositories.PlayoffRepository, uploader storage.FileUploader, logger *slog.Logger) ArchiveService {
	return &archiveService{repo: repo, uploader: uploader, logger: logger}
}

func SnapshotKey(p *models.Playoff) string {
	return fmt.Sprintf("playoffs/%s/v%d.json", p.ID, p.Version)
}

func (s *archiveService) Archive(ctx context.Context, playoffID string) (*storage.UploadResult, error) {
	if s.uploader == nil {
		return nil, ErrArchiveDisabled
	}
	p, err := s.repo.GetByID(ctx, playoffID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return s.ArchiveSnapshot(ctx, p)
}

func (s *archiveService) ArchiveSnapshot(ctx context.Context, p *models.Playoff) (*storage.UploadResult, error) {
	if s.uploader == nil {
		return nil, ErrArchiveDisabled
	}
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode playoff %s: %w", p.ID, err)
	}
	res, err := s.uploader.Upload(ctx, SnapshotKey(p), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	s.logger.Info("playoff snapshot archived",
		slog.String("playoff_id", p.ID),
		slog.Int64("version", p.Version),
		slog.String("key", res.Key))
	return res, nil
}
