package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	backend "soil-backend/internal/api"
	"soil-backend/internal/core"
	"soil-backend/internal/core/soil"
	"soil-backend/internal/database"
	"soil-backend/internal/history"
	"soil-backend/internal/messaging"
	"soil-backend/internal/storage"
	"soil-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct {
	categories []core.Category
	err        error
}

func (c *stubClassifier) Classify(ctx context.Context, image []byte) ([]core.Category, error) {
	return c.categories, c.err
}

func (c *stubClassifier) Labels() []string { return soil.Labels() }

func (c *stubClassifier) Release() {}

type testEnv struct {
	router   http.Handler
	queue    *messaging.InMemoryQueue
	store    *history.DBStore
	provider *storage.LocalProvider
}

func setup(t *testing.T, classifier core.Classifier, strict bool) testEnv {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "soil.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	provider := storage.NewLocalProvider(t.TempDir())
	images := storage.NewImageStore(provider, "local", "soil-images")
	require.NoError(t, images.Init(context.Background()))

	sessions := core.NewSessionCache(10, core.NewAdapter(images, classifier), core.Assembler{Strict: strict})
	t.Cleanup(sessions.Close)

	queue := messaging.NewInMemoryQueue()
	t.Cleanup(queue.Close)

	store := history.NewDBStore(db)

	service := backend.NewScanService(images, sessions, store, queue, history.IdentityByID, 1<<20)
	router := chi.NewRouter()
	service.AddRoutes(router)

	return testEnv{router: router, queue: queue, store: store, provider: provider}
}

func pngImage(t *testing.T) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, endpoint string, data []byte, fields map[string]string) *http.Request {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", "soil.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, endpoint, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, endpoint string, payload any) *http.Request {
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, endpoint, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(env testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func kapur() *stubClassifier {
	return &stubClassifier{categories: []core.Category{
		{Label: "07-Kapur", Confidence: 0.91},
		{Label: "03-Entisol", Confidence: 0.05},
	}}
}

func uploadImage(t *testing.T, env testEnv) string {
	rec := serve(env, multipartRequest(t, "/images", pngImage(t), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[api.UploadImageResponse](t, rec).ImageUri
}

func createSession(t *testing.T, env testEnv) string {
	rec := serve(env, jsonRequest(t, http.MethodPost, "/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[api.CreateSessionResponse](t, rec).SessionId.String()
}

func TestHealth(t *testing.T) {
	env := setup(t, kapur(), false)

	rec := serve(env, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadImage(t *testing.T) {
	env := setup(t, kapur(), false)

	uri := uploadImage(t, env)
	assert.Contains(t, uri, "local://soil-images/images/")

	rec := serve(env, multipartRequest(t, "/images", []byte("just some text"), nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/images", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	rec = serve(env, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionAnalyze(t *testing.T) {
	env := setup(t, kapur(), false)

	uri := uploadImage(t, env)
	sessionId := createSession(t, env)

	rec := serve(env, jsonRequest(t, http.MethodPut, "/sessions/"+sessionId+"/image", api.SelectImageRequest{ImageUri: uri}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(env, httptest.NewRequest(http.MethodGet, "/sessions/"+sessionId, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uri, decode[api.Session](t, rec).ImageUri)

	rec = serve(env, jsonRequest(t, http.MethodPost, "/sessions/"+sessionId+"/analyze", api.AnalyzeRequest{
		Temperature: "25.5",
		Rainfall:    "80",
		Sunlight:    "bad",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[api.AnalyzeResponse](t, rec)
	assert.Equal(t, api.ResultPayload{
		ImageUri:           uri,
		SoilClassification: "07-Kapur",
		InputArray:         []float32{25.5, 0, 80, 0, 7},
	}, res.Result)
	assert.Equal(t, 7, res.SoilCode)
	assert.Equal(t, "Kapur", res.SoilName)
	assert.False(t, res.Saved)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.JSONEq(t, `{"imageUri":"`+uri+`","soilClassification":"07-Kapur","inputArray":[25.5,0,80,0,7]}`, string(raw["Result"]))
}

func TestAnalyzeNumericReadings(t *testing.T) {
	env := setup(t, kapur(), false)

	uri := uploadImage(t, env)
	sessionId := createSession(t, env)

	rec := serve(env, jsonRequest(t, http.MethodPut, "/sessions/"+sessionId+"/image", api.SelectImageRequest{ImageUri: uri}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := `{"Temperature":25.5,"Humidity":"","Rainfall":80,"Sunlight":"bad"}`
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionId+"/analyze", bytes.NewReader([]byte(body)))
	rec = serve(env, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []float32{25.5, 0, 80, 0, 7}, decode[api.AnalyzeResponse](t, rec).Result.InputArray)

	body = `{"Temperature":null,"Humidity":true,"Rainfall":[1],"Sunlight":-2e1}`
	req = httptest.NewRequest(http.MethodPost, "/sessions/"+sessionId+"/analyze", bytes.NewReader([]byte(body)))
	rec = serve(env, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []float32{0, 0, 0, -20, 7}, decode[api.AnalyzeResponse](t, rec).Result.InputArray)
}

func TestAnalyzeWithoutImage(t *testing.T) {
	env := setup(t, kapur(), false)
	sessionId := createSession(t, env)

	rec := serve(env, jsonRequest(t, http.MethodPost, "/sessions/"+sessionId+"/analyze", api.AnalyzeRequest{}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "no image selected")
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name       string
		classifier *stubClassifier
		strict     bool
		readings   api.AnalyzeRequest
		code       int
		message    string
	}{
		{
			name:       "no results",
			classifier: &stubClassifier{},
			code:       http.StatusUnprocessableEntity,
			message:    "no results from image classification",
		},
		{
			name:       "adapter failure",
			classifier: &stubClassifier{err: errors.New("model file is corrupt")},
			code:       http.StatusBadGateway,
			message:    "model file is corrupt",
		},
		{
			name:       "strict readings",
			classifier: kapur(),
			strict:     true,
			readings:   api.AnalyzeRequest{Temperature: "abc"},
			code:       http.StatusUnprocessableEntity,
			message:    "temperature",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t, tc.classifier, tc.strict)
			uri := uploadImage(t, env)
			sessionId := createSession(t, env)

			rec := serve(env, jsonRequest(t, http.MethodPut, "/sessions/"+sessionId+"/image", api.SelectImageRequest{ImageUri: uri}))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			rec = serve(env, jsonRequest(t, http.MethodPost, "/sessions/"+sessionId+"/analyze", tc.readings))
			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.message)
		})
	}
}

func TestSessionErrors(t *testing.T) {
	env := setup(t, kapur(), false)

	rec := serve(env, jsonRequest(t, http.MethodPost, "/sessions/00000000-0000-0000-0000-000000000001/analyze", api.AnalyzeRequest{}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(env, jsonRequest(t, http.MethodPost, "/sessions/not-a-uuid/analyze", api.AnalyzeRequest{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sessionId := createSession(t, env)

	rec = serve(env, jsonRequest(t, http.MethodPut, "/sessions/"+sessionId+"/image", api.SelectImageRequest{ImageUri: "local://soil-images/images/missing.png"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(env, jsonRequest(t, http.MethodPut, "/sessions/"+sessionId+"/image", api.SelectImageRequest{ImageUri: "s3://elsewhere/images/a.png"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionId+"/analyze", bytes.NewReader([]byte("{")))
	rec = serve(env, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeAndSave(t *testing.T) {
	env := setup(t, kapur(), false)
	uri := uploadImage(t, env)
	sessionId := createSession(t, env)

	rec := serve(env, jsonRequest(t, http.MethodPut, "/sessions/"+sessionId+"/image", api.SelectImageRequest{ImageUri: uri}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(env, jsonRequest(t, http.MethodPost, "/sessions/"+sessionId+"/analyze", api.AnalyzeRequest{Humidity: "60", Save: true}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[api.AnalyzeResponse](t, rec).Saved)

	select {
	case task := <-env.queue.Tasks():
		payload, err := core.DecodePayload(task.Payload())
		require.NoError(t, err)
		assert.Equal(t, core.ImageReference(uri), payload.Image())
		assert.Equal(t, "07-Kapur", payload.Label())
		assert.Equal(t, core.FeatureVector{0, 60, 0, 0, 7}, payload.Vector())
	case <-time.After(time.Second):
		t.Fatal("result was not queued")
	}
}

func TestScan(t *testing.T) {
	env := setup(t, kapur(), false)

	rec := serve(env, multipartRequest(t, "/scan", pngImage(t), map[string]string{
		"temperature": "25.5",
		"humidity":    "",
		"rainfall":    "80",
		"sunlight":    "bad",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[api.AnalyzeResponse](t, rec)
	assert.Equal(t, "07-Kapur", res.Result.SoilClassification)
	assert.Equal(t, []float32{25.5, 0, 80, 0, 7}, res.Result.InputArray)
}

func TestSaveResult(t *testing.T) {
	env := setup(t, kapur(), false)
	uri := uploadImage(t, env)

	body := []byte(`{"imageUri":"` + uri + `","soilClassification":"02-Andosol","inputArray":[25.5,0,80,0,2]}`)
	req := httptest.NewRequest(http.MethodPost, "/history", bytes.NewReader(body))
	rec := serve(env, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.True(t, decode[api.SaveResultResponse](t, rec).Queued)

	task := <-env.queue.Tasks()
	payload, err := core.DecodePayload(task.Payload())
	require.NoError(t, err)
	assert.Equal(t, "02-Andosol", payload.Label())

	rec = serve(env, httptest.NewRequest(http.MethodPost, "/history", bytes.NewReader([]byte(`{"imageUri":"","soilClassification":"02-Andosol","inputArray":[1,2,3,4,5]}`))))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(env, httptest.NewRequest(http.MethodPost, "/history", bytes.NewReader([]byte(`{"imageUri":"`+uri+`","soilClassification":"02-Andosol","inputArray":[1,2]}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(env, httptest.NewRequest(http.MethodPost, "/history", bytes.NewReader([]byte(`{"imageUri":"local://soil-images/images/missing.png","soilClassification":"02-Andosol","inputArray":[1,2,3,4,5]}`))))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(env, httptest.NewRequest(http.MethodPost, "/history", bytes.NewReader([]byte(`{"imageUri":"s3://elsewhere/images/a.png","soilClassification":"02-Andosol","inputArray":[1,2,3,4,5]}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	select {
	case <-env.queue.Tasks():
		t.Fatal("rejected result was queued")
	default:
	}
}

func TestListAndDiffHistory(t *testing.T) {
	env := setup(t, kapur(), false)
	ctx := context.Background()

	now := time.Date(2024, time.March, 5, 14, 7, 0, 0, time.UTC)
	first := history.NewRecord("local://soil-images/images/a.png", "07-Kapur", now)
	second := history.NewRecord("local://soil-images/images/b.png", "02-Andosol", now.Add(time.Minute))
	require.NoError(t, env.store.Append(ctx, first))
	require.NoError(t, env.store.Append(ctx, second))

	rec := serve(env, httptest.NewRequest(http.MethodGet, "/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]api.HistoryRecord](t, rec)
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].Id)
	assert.Equal(t, first.ID, records[1].Id)
	assert.Equal(t, "05 Mar 2024, 14:08", records[0].Date)

	rec = serve(env, httptest.NewRequest(http.MethodGet, "/history?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.HistoryRecord](t, rec), 1)

	rec = serve(env, httptest.NewRequest(http.MethodGet, "/history?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	third := history.NewRecord("local://soil-images/images/c.png", "08-Pasir", now.Add(2*time.Minute))
	require.NoError(t, env.store.Append(ctx, third))

	rec = serve(env, jsonRequest(t, http.MethodPost, "/history/diff", api.HistoryDiffRequest{Records: records}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	diff := decode[api.HistoryDiffResponse](t, rec)
	assert.Equal(t, "id", diff.Mode)
	assert.Equal(t, []int{0}, diff.Inserted)
	assert.Empty(t, diff.Removed)
	assert.Empty(t, diff.Changed)
	assert.Equal(t, []int{0}, diff.Positions)
	assert.Len(t, diff.Records, 3)
}

func TestDiffHistoryLimits(t *testing.T) {
	env := setup(t, kapur(), false)

	snapshot := make([]api.HistoryRecord, backend.MaxDiffRecords+1)
	for i := range snapshot {
		record := history.NewRecord("local://soil-images/images/a.png", "07-Kapur", time.Now())
		snapshot[i] = api.HistoryRecord{Id: record.ID, ImageUri: record.ImageUri, Result: record.Result, Date: record.Date}
	}

	rec := serve(env, jsonRequest(t, http.MethodPost, "/history/diff", api.HistoryDiffRequest{Records: snapshot}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())

	rec = serve(env, jsonRequest(t, http.MethodPost, "/history/diff", api.HistoryDiffRequest{Records: snapshot[:backend.MaxDiffRecords]}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[api.HistoryDiffResponse](t, rec).Removed, backend.MaxDiffRecords)

	padded := append(bytes.Repeat([]byte(" "), 9<<20), []byte(`{"Records":[]}`)...)
	rec = serve(env, httptest.NewRequest(http.MethodPost, "/history/diff", bytes.NewReader(padded)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestScanFailureRemovesImage(t *testing.T) {
	env := setup(t, &stubClassifier{err: errors.New("model file is corrupt")}, false)

	rec := serve(env, multipartRequest(t, "/scan", pngImage(t), nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	objects, err := env.provider.ListObjects(context.Background(), "soil-images", "images/")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestListSoilClasses(t *testing.T) {
	env := setup(t, kapur(), false)

	rec := serve(env, httptest.NewRequest(http.MethodGet, "/soil-classes", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	classes := decode[[]api.SoilClass](t, rec)
	require.Len(t, classes, 9)
	assert.Equal(t, api.SoilClass{Code: 0, Name: "Unknown", Label: ""}, classes[0])
	assert.Equal(t, api.SoilClass{Code: 2, Name: "Andosol", Label: "02-Andosol"}, classes[2])
}
