package forms

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/form-extractor/constants"
	"github.com/joseph-ayodele/form-extractor/internal/async"
	"github.com/joseph-ayodele/form-extractor/internal/common"
	"github.com/joseph-ayodele/form-extractor/internal/entity"
	"github.com/joseph-ayodele/form-extractor/internal/export"
	"github.com/joseph-ayodele/form-extractor/internal/pipeline"
	"github.com/joseph-ayodele/form-extractor/internal/repository"
	"github.com/joseph-ayodele/form-extractor/internal/schema"
	"github.com/joseph-ayodele/form-extractor/internal/storage"
)

// ErrNotReady is returned by Results and Export while a form is still being processed.
var ErrNotReady = fmt.Errorf("%w: processing not finished", common.ErrNotFound)

const maxFilenameLen = 255

// Processor runs the extraction pipeline on one image.
type Processor interface {
	Process(ctx context.Context, data []byte, filename string) pipeline.Result
}

// Service manages uploaded forms: storage, persistence and background extraction.
type Service struct {
	repo     repository.FormRepository
	store    storage.Store
	proc     Processor
	exporter *export.Service
	queue    async.Queue
	maxBytes int
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Service)

// WithQueue makes Upload hand work to q instead of processing inline.
func WithQueue(q async.Queue) Option {
	return func(s *Service) { s.queue = q }
}

func WithMaxBytes(n int) Option {
	return func(s *Service) { s.maxBytes = n }
}

func NewService(repo repository.FormRepository, store storage.Store, proc Processor, exporter *export.Service, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if exporter == nil {
		exporter = export.NewService(logger)
	}
	s := &Service{
		repo:     repo,
		store:    store,
		proc:     proc,
		exporter: exporter,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AttachQueue sets the queue after construction; the queue usually needs the
// service as its handler.
func (s *Service) AttachQueue(q async.Queue) { s.queue = q }

// UploadResult is the outcome of Upload.
type UploadResult struct {
	Form         entity.Form
	Deduplicated bool
}

// Upload validates and stores an image, records the form as PROCESSING and
// schedules extraction. Re-uploading identical bytes returns the existing
// form; a previously failed form is scheduled again.
func (s *Service) Upload(ctx context.Context, filename, contentType string, data []byte) (UploadResult, error) {
	filename = strings.TrimSpace(filename)
	v := common.NewValidator().
		Field("filename", filename, common.Required, common.MaxLen(maxFilenameLen), common.ImageExtension).
		Field("file", data, common.MaxBytes(s.maxBytes))
	if err := v.AsAppError(); err != nil {
		s.logger.Warn("forms.upload.invalid", "filename", filename, "error", err)
		return UploadResult{}, err
	}
	if ct := strings.ToLower(strings.TrimSpace(contentType)); ct == "" || ct == "application/octet-stream" || !strings.HasPrefix(ct, "image/") {
		contentType = constants.ContentTypeForExt(filepath.Ext(filename))
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.repo.GetByHash(ctx, hash)
	switch {
	case err == nil:
		s.logger.Info("forms.upload.duplicate", "form_id", existing.ID, "status", existing.Status)
		if existing.Status == constants.FormStatusFailed {
			if err := s.repo.UpdateStatus(ctx, existing.ID, constants.FormStatusProcessing, nil, nil); err != nil {
				return UploadResult{}, err
			}
			existing.Status = constants.FormStatusProcessing
			existing.ErrorMessage = nil
			existing.ProcessedAt = nil
			if err := s.schedule(ctx, existing.ID); err != nil {
				return UploadResult{}, err
			}
			if s.queue == nil {
				if f, err := s.repo.GetByID(ctx, existing.ID); err == nil {
					existing = f
				}
			}
		}
		return UploadResult{Form: *existing, Deduplicated: true}, nil
	case !errors.Is(err, common.ErrNotFound):
		return UploadResult{}, err
	}

	key, err := s.store.Put(ctx, filename, contentType, data)
	if err != nil {
		return UploadResult{}, err
	}

	form := entity.Form{
		ID:          uuid.New(),
		Filename:    filename,
		StorageKey:  key,
		ContentType: contentType,
		FileSize:    int64(len(data)),
		ContentHash: hash,
		Status:      constants.FormStatusProcessing,
		UploadedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, &form); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("forms.upload.cleanup_failed", "key", key, "error", delErr)
		}
		return UploadResult{}, err
	}
	s.logger.Info("forms.upload.ok",
		"req_id", common.RequestIDFromContext(ctx),
		"form_id", form.ID,
		"filename", filename,
		"bytes", len(data),
	)

	if err := s.schedule(ctx, form.ID); err != nil {
		return UploadResult{}, err
	}
	if s.queue == nil {
		if f, err := s.repo.GetByID(ctx, form.ID); err == nil {
			form = *f
		}
	}
	return UploadResult{Form: form}, nil
}

func (s *Service) schedule(ctx context.Context, id uuid.UUID) error {
	if s.queue == nil {
		_, err := s.process(ctx, id)
		return err
	}
	err := s.queue.Enqueue(ctx, async.Job{
		FormID:      id,
		SubmittedAt: time.Now(),
		RequestID:   common.RequestIDFromContext(ctx),
	})
	if err != nil {
		s.logger.Error("forms.enqueue.failed", "form_id", id, "error", err)
		msg := "could not schedule processing: " + err.Error()
		now := s.now()
		_ = s.repo.UpdateStatus(ctx, id, constants.FormStatusFailed, &msg, &now)
		return common.Unexpected("could not schedule processing", err)
	}
	return nil
}

// Handle lets the service act as the queue's job handler.
func (s *Service) Handle(ctx context.Context, job async.Job) error {
	_, err := s.process(ctx, job.FormID)
	return err
}

// Process runs extraction for a stored form and records the outcome. It
// returns an error only when the form cannot be loaded or the outcome cannot
// be saved; a failed extraction is reported in the Result.
func (s *Service) Process(ctx context.Context, id string) (pipeline.Result, error) {
	formID, err := parseID(id)
	if err != nil {
		return pipeline.Result{}, err
	}
	return s.process(ctx, formID)
}

func (s *Service) process(ctx context.Context, id uuid.UUID) (pipeline.Result, error) {
	ctx = common.WithFormID(ctx, id.String())
	form, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return pipeline.Result{}, err
	}

	data, err := s.store.Get(ctx, form.StorageKey)
	if err != nil {
		s.fail(ctx, id, "stored image unavailable: "+err.Error())
		return pipeline.Result{}, err
	}

	res := s.proc.Process(ctx, data, form.Filename)

	body, err := json.Marshal(res)
	if err != nil {
		s.fail(ctx, id, "encode result: "+err.Error())
		return res, common.Unexpected("encode result", err)
	}
	ext := &entity.Extraction{
		FormID:    id,
		Status:    res.Status,
		LatencyMS: res.LatencyMS,
		Result:    body,
		CreatedAt: s.now(),
	}
	if res.Data != nil {
		ext.DocumentType = res.Data.DocumentType
		ext.ConfidenceScore = res.Data.ConfidenceScore
		ext.FieldCount = res.Data.FieldCount()
	}
	if err := s.repo.SaveExtraction(ctx, ext); err != nil {
		s.fail(ctx, id, "save extraction: "+err.Error())
		return res, err
	}

	now := s.now()
	if !res.OK() {
		msg := res.Error
		if err := s.repo.UpdateStatus(ctx, id, constants.FormStatusFailed, &msg, &now); err != nil {
			return res, err
		}
		s.logger.Warn("forms.process.failed", "form_id", id, "error", res.Error)
		return res, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, constants.FormStatusCompleted, nil, &now); err != nil {
		return res, err
	}
	s.logger.Info("forms.process.ok",
		"form_id", id,
		"document_type", ext.DocumentType,
		"fields", ext.FieldCount,
		"confidence", ext.ConfidenceScore,
		"latency_ms", res.LatencyMS,
	)
	return res, nil
}

func (s *Service) fail(ctx context.Context, id uuid.UUID, msg string) {
	now := s.now()
	if err := s.repo.UpdateStatus(ctx, id, constants.FormStatusFailed, &msg, &now); err != nil {
		s.logger.Error("forms.status.update_failed", "form_id", id, "error", err)
	}
	s.logger.Warn("forms.process.failed", "form_id", id, "error", msg)
}

// History lists forms newest first; limit <= 0 lists all.
func (s *Service) History(ctx context.Context, limit int) ([]entity.Form, error) {
	return s.repo.List(ctx, limit)
}

// Results returns the stored extraction, or ErrNotReady while processing.
func (s *Service) Results(ctx context.Context, id string) (*entity.Extraction, error) {
	formID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	form, err := s.repo.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	// a retried form still carries the previous attempt's extraction row
	if form.Status == constants.FormStatusPending || form.Status == constants.FormStatusProcessing {
		return nil, ErrNotReady
	}
	ext, err := s.repo.GetExtraction(ctx, formID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, ErrNotReady
	}
	return ext, err
}

// Image returns the original upload with its form record.
func (s *Service) Image(ctx context.Context, id string) ([]byte, *entity.Form, error) {
	formID, err := parseID(id)
	if err != nil {
		return nil, nil, err
	}
	form, err := s.repo.GetByID(ctx, formID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Get(ctx, form.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return data, form, nil
}

// Delete removes the stored image, the extraction and the form. A missing
// image does not block deletion of the records.
func (s *Service) Delete(ctx context.Context, id string) error {
	formID, err := parseID(id)
	if err != nil {
		return err
	}
	form, err := s.repo.GetByID(ctx, formID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, form.StorageKey); err != nil {
		s.logger.Warn("forms.delete.image_failed", "form_id", formID, "key", form.StorageKey, "error", err)
	}
	if err := s.repo.Delete(ctx, formID); err != nil {
		return err
	}
	s.logger.Info("forms.delete.ok", "form_id", formID)
	return nil
}

// Export renders the extracted document as XLSX and suggests a filename.
func (s *Service) Export(ctx context.Context, id string) ([]byte, string, error) {
	ext, err := s.Results(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if ext.Status != constants.ResultSuccess {
		return nil, "", common.NewAppError(common.CodeInput, "extraction failed; nothing to export", common.ErrInvalidInput)
	}

	var body struct {
		Data *schema.Document `json:"data"`
	}
	if err := json.Unmarshal(ext.Result, &body); err != nil || body.Data == nil {
		return nil, "", common.Unexpected("stored result is unreadable", err)
	}

	data, err := s.exporter.DocumentXLSX(*body.Data)
	if err != nil {
		return nil, "", common.Unexpected("export failed", err)
	}
	return data, "form-" + ext.FormID.String() + ".xlsx", nil
}

func parseID(id string) (uuid.UUID, error) {
	id = strings.TrimSpace(id)
	if err := common.NewValidator().Field("id", id, common.UUID).AsAppError(); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(id), nil
}
