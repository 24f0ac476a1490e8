package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"soil-backend/internal/core"
	"soil-backend/internal/core/soil"
	"soil-backend/internal/history"
	"soil-backend/internal/messaging"
	"soil-backend/internal/storage"
	"soil-backend/pkg/api"

	"github.com/go-chi/chi/v5"
)

const (
	maxJsonBodyBytes = 1 << 20
	maxDiffBodyBytes = 8 << 20

	// MaxDiffRecords bounds the client snapshot accepted by /history/diff.
	MaxDiffRecords = 5000
)

type ScanService struct {
	images    *storage.ImageStore
	sessions  *core.SessionCache
	history   history.Store
	publisher messaging.Publisher

	diffMode       history.Identity
	maxUploadBytes int64
}

func NewScanService(images *storage.ImageStore, sessions *core.SessionCache, store history.Store, publisher messaging.Publisher, diffMode history.Identity, maxUploadBytes int64) *ScanService {
	return &ScanService{
		images:         images,
		sessions:       sessions,
		history:        store,
		publisher:      publisher,
		diffMode:       diffMode,
		maxUploadBytes: maxUploadBytes,
	}
}

func (s *ScanService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.Post("/images", RestHandler(s.UploadImage))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", RestHandler(s.CreateSession))
		r.Get("/{session_id}", RestHandler(s.GetSession))
		r.Put("/{session_id}/image", RestHandler(s.SelectImage))
		r.Post("/{session_id}/analyze", RestHandler(s.Analyze))
	})

	r.Post("/scan", RestHandler(s.Scan))

	r.Route("/history", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListHistory))
		r.Post("/", RestHandler(s.SaveResult))
		r.Post("/diff", RestHandler(s.DiffHistory))
	})

	r.Get("/soil-classes", RestHandler(s.ListSoilClasses))
}

// pipelineError maps classification and handoff failures to a status code and
// a message that can be shown to the user as is.
func pipelineError(err error) error {
	switch {
	case errors.Is(err, core.ErrMissingImage):
		return CodedErrorf(http.StatusUnprocessableEntity, "no image selected: choose an image before analyzing")
	case errors.Is(err, core.ErrNoResults):
		return CodedError(http.StatusUnprocessableEntity, err)
	case errors.Is(err, core.ErrInvalidReading):
		return CodedError(http.StatusUnprocessableEntity, err)
	case errors.Is(err, core.ErrStaleResult):
		return CodedError(http.StatusConflict, err)
	case errors.Is(err, core.ErrAdapterFailure):
		return CodedError(http.StatusBadGateway, err)
	case errors.Is(err, context.DeadlineExceeded):
		return CodedErrorf(http.StatusGatewayTimeout, "classification timed out")
	default:
		return CodedError(http.StatusInternalServerError, err)
	}
}

func limitBody(r *http.Request, n int64) {
	r.Body = http.MaxBytesReader(nil, r.Body, n)
}

func (s *ScanService) readImage(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, CodedErrorf(http.StatusRequestEntityTooLarge, "image exceeds the %d byte limit", s.maxUploadBytes)
		}
		return nil, CodedErrorf(http.StatusBadRequest, "unable to parse multipart form: %v", err)
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "missing 'image' form file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "unable to read uploaded image")
	}
	return data, nil
}

func (s *ScanService) saveImage(ctx context.Context, data []byte) (core.ImageReference, error) {
	ref, err := s.images.Save(ctx, data)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImage) {
			return "", CodedError(http.StatusUnsupportedMediaType, err)
		}
		return "", CodedErrorf(http.StatusInternalServerError, "failed to store image")
	}
	return ref, nil
}

func (s *ScanService) UploadImage(r *http.Request) (any, error) {
	data, err := s.readImage(r)
	if err != nil {
		return nil, err
	}

	ref, err := s.saveImage(r.Context(), data)
	if err != nil {
		return nil, err
	}

	slog.Info("image uploaded", "image", ref, "size", len(data))
	return api.UploadImageResponse{ImageUri: ref.String()}, nil
}

func (s *ScanService) CreateSession(r *http.Request) (any, error) {
	session := s.sessions.Create()
	slog.Info("scan session created", "session_id", session.ID())
	return api.CreateSessionResponse{SessionId: session.ID()}, nil
}

func (s *ScanService) getSession(r *http.Request) (*core.Session, error) {
	sessionId, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Get(sessionId)
	if err != nil {
		return nil, CodedErrorf(http.StatusNotFound, "session %s not found", sessionId)
	}
	return session, nil
}

func (s *ScanService) GetSession(r *http.Request) (any, error) {
	session, err := s.getSession(r)
	if err != nil {
		return nil, err
	}
	return api.Session{SessionId: session.ID(), ImageUri: session.Image().String()}, nil
}

func (s *ScanService) checkImage(ctx context.Context, ref core.ImageReference) error {
	exists, err := s.images.Exists(ctx, ref)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidReference) {
			return CodedError(http.StatusBadRequest, err)
		}
		slog.Error("error checking image", "image", ref, "error", err)
		return CodedErrorf(http.StatusInternalServerError, "failed to look up image")
	}
	if !exists {
		return CodedErrorf(http.StatusNotFound, "image %s not found", ref)
	}
	return nil
}

func (s *ScanService) SelectImage(r *http.Request) (any, error) {
	session, err := s.getSession(r)
	if err != nil {
		return nil, err
	}

	limitBody(r, maxJsonBodyBytes)
	req, err := ParseRequest[api.SelectImageRequest](r)
	if err != nil {
		return nil, err
	}

	ref := core.ImageReference(req.ImageUri)
	if !ref.IsZero() {
		if err := s.checkImage(r.Context(), ref); err != nil {
			return nil, err
		}
	}

	session.Select(ref)
	return api.Session{SessionId: session.ID(), ImageUri: ref.String()}, nil
}

func (s *ScanService) analyze(ctx context.Context, session *core.Session, raw core.RawReadings, save bool) (api.AnalyzeResponse, error) {
	payload, err := session.Analyze(ctx, raw)
	if err != nil {
		slog.Info("analysis failed", "session_id", session.ID(), "error", err)
		return api.AnalyzeResponse{}, pipelineError(err)
	}

	if save {
		if err := s.publisher.PublishResult(ctx, payload); err != nil {
			slog.Error("error publishing result", "session_id", session.ID(), "error", err)
			return api.AnalyzeResponse{}, CodedErrorf(http.StatusInternalServerError, "failed to queue result for saving")
		}
	}

	class := soil.Encode(payload.Label())
	return api.AnalyzeResponse{
		Result:   convertPayload(payload),
		SoilCode: int(class),
		SoilName: class.Name(),
		Saved:    save,
	}, nil
}

func (s *ScanService) Analyze(r *http.Request) (any, error) {
	session, err := s.getSession(r)
	if err != nil {
		return nil, err
	}

	limitBody(r, maxJsonBodyBytes)
	req, err := ParseRequest[api.AnalyzeRequest](r)
	if err != nil {
		return nil, err
	}

	return s.analyze(r.Context(), session, core.RawReadings{
		Temperature: string(req.Temperature),
		Humidity:    string(req.Humidity),
		Rainfall:    string(req.Rainfall),
		Sunlight:    string(req.Sunlight),
	}, req.Save)
}

// Scan uploads an image and analyzes it in one request, using a session that
// is not kept afterwards.
func (s *ScanService) Scan(r *http.Request) (any, error) {
	data, err := s.readImage(r)
	if err != nil {
		return nil, err
	}

	ref, err := s.saveImage(r.Context(), data)
	if err != nil {
		return nil, err
	}

	session := s.sessions.Detached()
	defer session.Close()
	session.Select(ref)

	raw := core.RawReadings{
		Temperature: r.FormValue("temperature"),
		Humidity:    r.FormValue("humidity"),
		Rainfall:    r.FormValue("rainfall"),
		Sunlight:    r.FormValue("sunlight"),
	}
	save, _ := strconv.ParseBool(r.FormValue("save"))

	res, err := s.analyze(r.Context(), session, raw, save)
	if err != nil {
		// nothing refers to the image once the one-shot analysis fails
		if err := s.images.Delete(context.WithoutCancel(r.Context()), ref); err != nil {
			slog.Error("error removing image after failed scan", "image", ref, "error", err)
		}
		return nil, err
	}
	return res, nil
}

func (s *ScanService) ListHistory(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListHistoryParams](r)
	if err != nil {
		return nil, err
	}
	if params.Limit < 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "limit must not be negative")
	}

	records, err := s.history.Recent(r.Context(), params.Limit)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to list history")
	}

	return convertRecords(records), nil
}

func (s *ScanService) SaveResult(r *http.Request) (any, error) {
	limitBody(r, maxJsonBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, CodedErrorf(http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", maxErr.Limit)
		}
		return nil, CodedErrorf(http.StatusBadRequest, "unable to read request body")
	}

	payload, err := core.DecodePayload(body)
	if err != nil {
		if errors.Is(err, core.ErrMissingImage) {
			return nil, pipelineError(err)
		}
		return nil, CodedError(http.StatusBadRequest, err)
	}

	if err := s.checkImage(r.Context(), payload.Image()); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishResult(r.Context(), payload); err != nil {
		slog.Error("error publishing result", "image", payload.Image(), "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue result for saving")
	}

	return WithStatus(http.StatusAccepted, api.SaveResultResponse{Queued: true}), nil
}

// DiffHistory compares the client's snapshot of the history list with the
// current one so the client only redraws what changed.
func (s *ScanService) DiffHistory(r *http.Request) (any, error) {
	limitBody(r, maxDiffBodyBytes)
	req, err := ParseRequest[api.HistoryDiffRequest](r)
	if err != nil {
		return nil, err
	}
	if len(req.Records) > MaxDiffRecords {
		return nil, CodedErrorf(http.StatusRequestEntityTooLarge, "snapshot has %d records, at most %d can be compared", len(req.Records), MaxDiffRecords)
	}

	current, err := s.history.List(r.Context())
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to list history")
	}

	changes := history.Diff(convertApiRecords(req.Records), current, s.diffMode)

	return api.HistoryDiffResponse{
		Mode:      s.diffMode.String(),
		Inserted:  nonNil(changes.Inserted),
		Removed:   nonNil(changes.Removed),
		Changed:   nonNil(changes.Changed),
		Positions: changes.Positions(),
		Records:   convertRecords(current),
	}, nil
}

func (s *ScanService) ListSoilClasses(r *http.Request) (any, error) {
	classes := make([]api.SoilClass, 0, len(soil.All()))
	for _, class := range soil.All() {
		classes = append(classes, api.SoilClass{Code: int(class), Name: class.Name(), Label: class.Label()})
	}
	return classes, nil
}

func convertPayload(payload core.ResultPayload) api.ResultPayload {
	return api.ResultPayload{
		ImageUri:           payload.Image().String(),
		SoilClassification: payload.Label(),
		InputArray:         payload.Vector().Slice(),
	}
}

func convertRecords(records []history.Record) []api.HistoryRecord {
	out := make([]api.HistoryRecord, 0, len(records))
	for _, record := range records {
		out = append(out, api.HistoryRecord{
			Id:         record.ID,
			ImageUri:   record.ImageUri,
			Result:     record.Result,
			Date:       record.Date,
			InputArray: record.Inputs,
		})
	}
	return out
}

func convertApiRecords(records []api.HistoryRecord) []history.Record {
	out := make([]history.Record, 0, len(records))
	for _, record := range records {
		out = append(out, history.Record{
			ID:       record.Id,
			ImageUri: record.ImageUri,
			Result:   record.Result,
			Date:     record.Date,
			Inputs:   record.InputArray,
		})
	}
	return out
}

func nonNil(positions []int) []int {
	if positions == nil {
		return []int{}
	}
	return positions
}

