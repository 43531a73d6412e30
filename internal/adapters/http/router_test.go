package httpadapter

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ridgelinehq/docpipe/internal/config"
	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

type ingestFake struct {
	doc *domain.Document
	err error

	gotClientID string
	gotFilename string
	gotMime     string
	gotBody     []byte
}

func (f *ingestFake) Upload(_ context.Context, clientID, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.gotClientID = clientID
	f.gotFilename = filename
	f.gotMime = mimeType
	f.gotBody = raw

	if f.err != nil {
		return nil, f.err
	}
	if f.doc != nil {
		return f.doc, nil
	}
	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		ClientID:    clientID,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "documents/doc-1",
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type pipelineFake struct {
	status    *domain.RunStatus
	statusErr error

	cancelled bool
	cancelErr error

	result       *domain.ProcessingResult
	reprocessErr error
	gotOpts      domain.RunOptions
}

func (f *pipelineFake) ProcessDocument(context.Context, string, []byte, string, domain.RunOptions) (*domain.ProcessingResult, error) {
	return f.result, nil
}

func (f *pipelineFake) ProcessBatch(context.Context, []domain.BatchInput, domain.RunOptions) []*domain.ProcessingResult {
	return nil
}

func (f *pipelineFake) ProcessingStatus(context.Context, string) (*domain.RunStatus, error) {
	return f.status, f.statusErr
}

func (f *pipelineFake) CancelProcessing(context.Context, string) (bool, error) {
	return f.cancelled, f.cancelErr
}

func (f *pipelineFake) ReprocessDocument(_ context.Context, _ string, opts domain.RunOptions) (*domain.ProcessingResult, error) {
	f.gotOpts = opts
	return f.result, f.reprocessErr
}

type formsFake struct {
	form *domain.TaxForm
	err  error

	gotClientID string
	gotType     domain.FormType
	gotYear     int
}

func (f *formsFake) GetForm(_ context.Context, clientID string, formType domain.FormType, taxYear int) (*domain.TaxForm, error) {
	f.gotClientID = clientID
	f.gotType = formType
	f.gotYear = taxYear
	return f.form, f.err
}

type repoFake struct {
	doc *domain.Document
	err error
}

func (f *repoFake) Create(context.Context, *domain.Document) error { return nil }

func (f *repoFake) GetByID(context.Context, string) (*domain.Document, error) {
	return f.doc, f.err
}

func (f *repoFake) UpdateStatus(context.Context, string, domain.DocumentStatus, string) error {
	return nil
}

func (f *repoFake) SaveOCRResult(context.Context, string, *domain.OCRResult) error { return nil }

func (f *repoFake) SaveAnalysisResult(context.Context, string, *domain.AnalysisResult) error {
	return nil
}

func (f *repoFake) SaveAutoFillResult(context.Context, string, *domain.AutoFillResult) error {
	return nil
}

func (f *repoFake) BeginProcessing(context.Context, string) error { return nil }

type routerFixture struct {
	ingest   *ingestFake
	pipeline *pipelineFake
	forms    *formsFake
	repo     *repoFake
	handler  http.Handler
}

func newRouterFixture(cfg config.Config) *routerFixture {
	f := &routerFixture{
		ingest:   &ingestFake{},
		pipeline: &pipelineFake{},
		forms:    &formsFake{},
		repo:     &repoFake{},
	}
	f.handler = NewRouter(cfg, f.ingest, f.pipeline, f.forms, f.repo).Handler()
	return f
}

func multipartUpload(t *testing.T, clientID, filename, mimeType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if clientID != "" {
		if err := writer.WriteField("client_id", clientID); err != nil {
			t.Fatalf("write client_id field: %v", err)
		}
	}
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	header["Content-Type"] = []string{mimeType}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create multipart part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write multipart content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func doRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}
