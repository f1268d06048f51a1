package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-api/internal/models"
	"github.com/noah-isme/sma-exam-api/internal/repository"
	"github.com/noah-isme/sma-exam-api/pkg/errors"
	"github.com/noah-isme/sma-exam-api/pkg/jobs"
)

type archiveExporter interface {
	Export(ctx context.Context, sessionID, collection, format string) (ExportResult, error)
}

type archiveFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type archiveSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

// ArchiveDownload bundles an open file with response metadata.
type ArchiveDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	SizeBytes   int64
}

// ArchiveServiceConfig sizes the render worker pool.
type ArchiveServiceConfig struct {
	Workers int
}

// ArchiveService renders export snapshots in the background. A request is
// accepted immediately, queued, rendered by a worker, persisted on disk and
// exposed through a signed download token. Entries outlive run reruns: an
// archive is a snapshot of the moment it was rendered, not a live view.
type ArchiveService struct {
	archives *repository.ArchiveStore
	sessions *repository.ExamStore
	exporter archiveExporter
	storage  archiveFileStorage
	signer   archiveSigner
	queue    *jobs.Queue
	logger   *zap.Logger
}

// NewArchiveService wires the background export pipeline. Call Start before
// accepting requests and Stop on shutdown.
func NewArchiveService(
	archives *repository.ArchiveStore,
	sessions *repository.ExamStore,
	exporter archiveExporter,
	storage archiveFileStorage,
	signer archiveSigner,
	cfg ArchiveServiceConfig,
	logger *zap.Logger,
) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ArchiveService{
		archives: archives,
		sessions: sessions,
		exporter: exporter,
		storage:  storage,
		signer:   signer,
		logger:   logger,
	}
	s.queue = jobs.NewQueue("archive-render", s.process, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return s
}

// Start launches the render workers.
func (s *ArchiveService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *ArchiveService) Stop() {
	s.queue.Stop()
}

// Request queues a new export render for the session.
func (s *ArchiveService) Request(ctx context.Context, sessionID, collection, format string) (models.ArchiveEntry, error) {
	if _, ok := s.sessions.FindSession(sessionID); !ok {
		return models.ArchiveEntry{}, errors.Clone(errors.ErrNotFound, "session not found")
	}
	if collection == "" {
		collection = CollectionBundle
	}
	if format == "" {
		format = FormatJSON
	}
	if err := validateArchiveSelection(collection, format); err != nil {
		return models.ArchiveEntry{}, err
	}

	entry := models.ArchiveEntry{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Collection: collection,
		Format:     format,
		Status:     models.ArchiveStatusQueued,
		CreatedAt:  time.Now().UTC(),
	}
	s.archives.Create(entry)

	if err := s.queue.Enqueue(jobs.Job{ID: entry.ID, Type: "archive-render", Payload: entry.ID}); err != nil {
		s.archives.Update(entry.ID, func(e *models.ArchiveEntry) {
			e.Status = models.ArchiveStatusFailed
			e.Error = "render queue unavailable"
		})
		return models.ArchiveEntry{}, errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "archive queue unavailable")
	}
	return entry, nil
}

// Get returns one archive entry.
func (s *ArchiveService) Get(ctx context.Context, id string) (models.ArchiveEntry, error) {
	entry, ok := s.archives.Find(id)
	if !ok {
		return models.ArchiveEntry{}, errors.Clone(errors.ErrNotFound, "archive entry not found")
	}
	return entry, nil
}

// ListBySession returns a session's archive entries, newest first.
func (s *ArchiveService) ListBySession(ctx context.Context, sessionID string) ([]models.ArchiveEntry, error) {
	if _, ok := s.sessions.FindSession(sessionID); !ok {
		return nil, errors.Clone(errors.ErrNotFound, "session not found")
	}
	return s.archives.ListBySession(sessionID), nil
}

// Download validates a signed token and opens the rendered file. Callers own
// closing the returned file.
func (s *ArchiveService) Download(ctx context.Context, token string) (ArchiveDownload, error) {
	entryID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return ArchiveDownload{}, errors.Wrap(err, errors.ErrValidation.Code, errors.ErrValidation.Status, "invalid download token")
	}
	entry, ok := s.archives.Find(entryID)
	if !ok {
		return ArchiveDownload{}, errors.Clone(errors.ErrNotFound, "archive entry not found")
	}
	if entry.Status != models.ArchiveStatusReady {
		return ArchiveDownload{}, errors.Clone(errors.ErrPreconditionFailed, "archive not ready")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return ArchiveDownload{}, errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "archive file unavailable")
	}
	return ArchiveDownload{
		File:        file,
		Filename:    entry.Filename,
		ContentType: archiveContentType(entry.Format),
		SizeBytes:   entry.SizeBytes,
	}, nil
}

// process is the queue handler: render, persist, sign.
func (s *ArchiveService) process(ctx context.Context, job jobs.Job) error {
	entryID, _ := job.Payload.(string)
	entry, ok := s.archives.Find(entryID)
	if !ok {
		s.logger.Warn("archive job for unknown entry", zap.String("entry_id", entryID))
		return nil
	}

	result, err := s.exporter.Export(ctx, entry.SessionID, entry.Collection, entry.Format)
	if err != nil {
		s.fail(entryID, err)
		return nil
	}

	relPath := fmt.Sprintf("%s/%s-%s.%s", entry.SessionID, entry.ID, entry.Collection, entry.Format)
	if _, err := s.storage.Save(relPath, result.Body); err != nil {
		s.fail(entryID, err)
		return nil
	}

	token, expiresAt, err := s.signer.Generate(entry.ID, relPath)
	if err != nil {
		// an unsigned file is unreachable, remove the orphan
		_ = s.storage.Delete(relPath)
		s.fail(entryID, err)
		return nil
	}

	now := time.Now().UTC()
	s.archives.Update(entryID, func(e *models.ArchiveEntry) {
		e.Status = models.ArchiveStatusReady
		e.Filename = result.Filename
		e.SizeBytes = int64(len(result.Body))
		e.DownloadToken = token
		e.ExpiresAt = &expiresAt
		e.CompletedAt = &now
		e.Error = ""
	})
	s.logger.Info("archive rendered",
		zap.String("entry_id", entryID),
		zap.String("session_id", entry.SessionID),
		zap.String("collection", entry.Collection),
		zap.Int("bytes", len(result.Body)),
	)
	return nil
}

func (s *ArchiveService) fail(entryID string, cause error) {
	s.archives.Update(entryID, func(e *models.ArchiveEntry) {
		e.Status = models.ArchiveStatusFailed
		e.Error = cause.Error()
	})
	s.logger.Warn("archive render failed", zap.String("entry_id", entryID), zap.Error(cause))
}

func validateArchiveSelection(collection, format string) error {
	switch collection {
	case CollectionSubjects, CollectionEligibility, CollectionTickets, CollectionRoomRequests, CollectionRun:
	case CollectionBundle:
		if format == FormatCSV {
			return errors.Clone(errors.ErrValidation, "bundle supports json and pdf only")
		}
	default:
		return errors.Clone(errors.ErrValidation, fmt.Sprintf("unknown collection %q", collection))
	}
	switch format {
	case FormatJSON, FormatCSV, FormatPDF:
		return nil
	default:
		return errors.Clone(errors.ErrValidation, fmt.Sprintf("unknown format %q", format))
	}
}

func archiveContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}
