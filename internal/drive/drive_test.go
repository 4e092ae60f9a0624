package drive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
	"github.com/andresuchdata/inventory-analyzer/internal/domain"
)

type fakeFiles struct {
	files   map[string]*File
	content map[string]string
	folders map[string]string
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{
		files: map[string]*File{
			"f1": {ID: "f1", Name: "stock.csv", MimeType: "text/csv"},
			"f2": {ID: "f2", Name: "notes.pdf", MimeType: "application/pdf"},
			"f3": {ID: "f3", Name: "Weekly", MimeType: spreadsheetMimeType},
			"d1": {ID: "d1", Name: "archive", MimeType: folderMimeType},
		},
		content: map[string]string{
			"f1": "Name,Category,Stock,Sales\nWidget,Tools,5,30\n",
			"f3": "xlsx-bytes",
		},
		folders: map[string]string{"exports/daily": "folder-9"},
	}
}

func (f *fakeFiles) ListFiles(_ context.Context, folderID string) ([]*File, error) {
	return []*File{f.files["f1"], f.files["f2"], f.files["f3"], f.files["d1"]}, nil
}

func (f *fakeFiles) GetFile(_ context.Context, fileID string) (*File, error) {
	file, ok := f.files[fileID]
	if !ok {
		return nil, errors.New("not found")
	}
	return file, nil
}

func (f *fakeFiles) DownloadFile(_ context.Context, fileID string, w io.Writer) error {
	_, err := io.WriteString(w, f.content[fileID])
	return err
}

func (f *fakeFiles) FindFolderByPath(_ context.Context, path string) (string, error) {
	id, ok := f.folders[path]
	if !ok {
		return "", ErrFolderNotFound
	}
	return id, nil
}

type fakeImporter struct {
	got []domain.UploadedFile
	err error
}

func (f *fakeImporter) Import(_ context.Context, file domain.UploadedFile) (*domain.UploadResult, error) {
	f.got = append(f.got, file)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.UploadResult{SessionID: "s-1", Filename: file.Filename}, nil
}

func TestFile_LocalName(t *testing.T) {
	assert.Equal(t, "Weekly.xlsx", (&File{Name: "Weekly", MimeType: spreadsheetMimeType}).LocalName())
	assert.Equal(t, "stock.csv", (&File{Name: "stock.csv", MimeType: "text/csv"}).LocalName())
	assert.True(t, (&File{MimeType: folderMimeType}).IsFolder())
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeQuery("O'Brien"))
}

func TestImportService(t *testing.T) {
	ctx := context.Background()
	importer := &fakeImporter{}
	svc := NewImportService(newFakeFiles(), importer, 1024)

	res, err := svc.ImportFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", res.SessionID)
	require.Len(t, importer.got, 1)
	assert.Equal(t, "stock.csv", importer.got[0].Filename)
	assert.Contains(t, string(importer.got[0].Data), "Widget")

	_, err = svc.ImportFile(ctx, "f3")
	require.NoError(t, err)
	assert.Equal(t, "Weekly.xlsx", importer.got[1].Filename)

	_, err = svc.ImportFile(ctx, "f2")
	assert.Error(t, err)

	_, err = svc.ImportFile(ctx, "d1")
	assert.ErrorIs(t, err, ErrNotAFile)

	small := NewImportService(newFakeFiles(), importer, 8)
	_, err = small.ImportFile(ctx, "f1")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestDownloader_DownloadFolder(t *testing.T) {
	dir := t.TempDir()
	paths, err := NewDownloader(newFakeFiles()).DownloadFolder(context.Background(), DownloadOptions{DownloadDir: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "stock.csv"), filepath.Join(dir, "Weekly.xlsx")}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Widget")

	_, err = NewDownloader(newFakeFiles()).DownloadFolder(context.Background(), DownloadOptions{})
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	importer := &fakeImporter{}
	files := newFakeFiles()
	router := NewHandler(files, NewImportService(files, importer, 1024), "root-folder").Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 4)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files?path=missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files/download?fileId=f1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "stock.csv")
	assert.Contains(t, rec.Body.String(), "Widget")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/import", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/import?fileId=f1", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session_id":"s-1"`)

	importer.err = &analysis.MissingColumnsError{Missing: []analysis.Role{analysis.RoleSales}}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/import?fileId=f1", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/import?fileId=f1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
