package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oluwaseun-a/po-tracker/internal/pipeline"
)

const goodDocument = `PO: PO-2024-042
Status: confirmed
Date: 2024-03-15
Buyer: Amaka Eze
Email: amaka@buyer.example
Deliver To: Dock 3, Apapa

WID-1 | Widget, large | 4 | 2.50 | 10.00

Total: 10.00
`

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	proc, err := pipeline.New(pipeline.Config{
		TempDir:      t.TempDir(),
		FeatureFlags: []string{pipeline.FlagDeterministicStructuring},
	})
	require.NoError(t, err)

	router := gin.New()
	NewHandler(proc, nil, nil, 1, nil).RegisterRoutes(router)
	return router
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func postUpload(router *gin.Engine, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadOrderCreated(t *testing.T) {
	router := newTestRouter(t)
	body, ct := multipartUpload(t, "order.txt", []byte(goodDocument))
	rec := postUpload(router, body, ct)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Order struct {
			PONumber string  `json:"po_number"`
			Status   string  `json:"status"`
			Total    float64 `json:"total"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PO-2024-042", resp.Order.PONumber)
	assert.Equal(t, "confirmed", resp.Order.Status)
	assert.InDelta(t, 10, resp.Order.Total, 0.001)
}

func TestUploadOrderMissingFile(t *testing.T) {
	router := newTestRouter(t)
	rec := postUpload(router, bytes.NewBuffer(nil), "multipart/form-data; boundary=none")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadOrderParsingFailure(t *testing.T) {
	router := newTestRouter(t)
	body, ct := multipartUpload(t, "ramble.txt", []byte("dear sir, attached please find our requirements"))
	rec := postUpload(router, body, ct)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var resp struct {
		Kind     string `json:"kind"`
		Strategy string `json:"strategy"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "parsing", resp.Kind)
	assert.Equal(t, "manual", resp.Strategy)
}

func TestUploadOrderValidationFailureListsFields(t *testing.T) {
	router := newTestRouter(t)
	// Structured enough to parse, but missing the buyer email.
	doc := "PO: PO-2024-043\nDate: 2024-03-15\n\nWID-1 | Widget | 1 | 2.00 | 2.00\n\nTotal: 2.00\n"
	body, ct := multipartUpload(t, "order.txt", []byte(doc))
	rec := postUpload(router, body, ct)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var resp struct {
		Kind             string `json:"kind"`
		Strategy         string `json:"strategy"`
		ValidationErrors []struct {
			Field string `json:"field"`
		} `json:"validation_errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation", resp.Kind)
	assert.Equal(t, "manual", resp.Strategy)
	fields := make([]string, 0, len(resp.ValidationErrors))
	for _, fe := range resp.ValidationErrors {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "buyerInfo.email")
}

func TestUploadOrderUnsupportedExtension(t *testing.T) {
	router := newTestRouter(t)
	body, ct := multipartUpload(t, "order.docx", []byte("binary-ish"))
	rec := postUpload(router, body, ct)

	require.Equal(t, http.StatusNotImplemented, rec.Code, rec.Body.String())

	var resp struct {
		Kind     string `json:"kind"`
		Strategy string `json:"strategy"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "feature", resp.Kind)
	assert.Equal(t, "abort", resp.Strategy)
}

func TestUploadOrderTooLarge(t *testing.T) {
	router := newTestRouter(t) // 1 MB cap
	big := bytes.Repeat([]byte("a"), 2<<20)
	body, ct := multipartUpload(t, "order.txt", big)
	rec := postUpload(router, body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
