package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-exam-api/internal/service"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
)

type exporterMock struct {
	result             service.ExportResult
	err                error
	capturedCollection string
	capturedFormat     string
}

func (m *exporterMock) Export(ctx context.Context, sessionID, collection, format string) (service.ExportResult, error) {
	m.capturedCollection = collection
	m.capturedFormat = format
	return m.result, m.err
}

func TestExportStreamsDownload(t *testing.T) {
	mockSvc := &exporterMock{result: service.ExportResult{
		ContentType: "text/csv",
		Filename:    "exam-subjects-sess-1.csv",
		Body:        []byte("Course,Title\n"),
	}}
	handler := &ExportHandler{service: mockSvc}
	c, w := testContext(t, http.MethodGet, "/sessions/sess-1/export?collection=subjects&format=csv", nil, gin.Params{{Key: "id", Value: "sess-1"}})

	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "subjects", mockSvc.capturedCollection)
	assert.Equal(t, "csv", mockSvc.capturedFormat)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "exam-subjects-sess-1.csv")
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
}

func TestExportUnknownCollection(t *testing.T) {
	mockSvc := &exporterMock{err: appErrors.Clone(appErrors.ErrValidation, `unknown collection "grades"`)}
	handler := &ExportHandler{service: mockSvc}
	c, w := testContext(t, http.MethodGet, "/sessions/sess-1/export?collection=grades", nil, gin.Params{{Key: "id", Value: "sess-1"}})

	handler.Export(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
