package download

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/otcheredev/wado-download-engine/internal/hierarchy"
	"github.com/otcheredev/wado-download-engine/internal/models"
	"github.com/otcheredev/wado-download-engine/internal/wado"
)

type fakeRetriever struct {
	body string
}

func (f *fakeRetriever) Fetch(ctx context.Context, endpoint wado.WadoEndpoint, series wado.SeriesRef, instance wado.SopInstanceRef, transferSyntax string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func (f *fakeRetriever) FetchSeriesMetadata(ctx context.Context, endpoint wado.WadoEndpoint, studyUID, seriesUID string) (models.SeriesMetadataResponse, error) {
	return nil, wado.ErrUnsupportedOperation
}

func TestManagerRunDownloadsEveryInstance(t *testing.T) {
	tmpDir := t.TempDir()

	series := wado.SeriesRef{
		SeriesInstanceUID: "series1",
		StudyInstanceUID:  "study1",
		Instances: []wado.SopInstanceRef{
			{SOPInstanceUID: "sop1"},
			{SOPInstanceUID: "sop2"},
			{SOPInstanceUID: "sop3"},
		},
	}

	store := hierarchy.NewMemoryStore()
	store.PutStudy(hierarchy.Study{UID: "study1"})
	store.PutSeries(hierarchy.Series{UID: "series1", StudyUID: "study1"})

	m := &Manager{
		SeriesConcurrency: 2,
		TmpDir:            tmpDir,
		Retriever:         &fakeRetriever{body: "dicom-bytes"},
		Store:             store,
	}

	task := NewTask(context.Background(), series, wado.PriorityKey{}, false, wado.OpenDefault)

	if err := m.Run(context.Background(), task); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if task.Status() != wado.StatusComplete {
		t.Errorf("task status = %v, want StatusComplete", task.Status())
	}

	for _, sop := range []string{"sop1", "sop2", "sop3"} {
		if !store.HasSOPInstance("study1", sop) {
			t.Errorf("expected %s recorded as downloaded", sop)
		}
	}
}

func TestManagerSkipsDuplicateSOPAcrossSplitSeries(t *testing.T) {
	tmpDir := t.TempDir()

	store := hierarchy.NewMemoryStore()
	store.PutStudy(hierarchy.Study{UID: "study1"})
	store.PutSeries(hierarchy.Series{UID: "seriesA", StudyUID: "study1"})
	store.PutSeries(hierarchy.Series{UID: "seriesB", StudyUID: "study1"})
	store.RecordSOPInstance("seriesA", "dupSop")

	series := wado.SeriesRef{
		SeriesInstanceUID: "seriesB",
		StudyInstanceUID:  "study1",
		Instances:         []wado.SopInstanceRef{{SOPInstanceUID: "dupSop"}},
	}

	m := &Manager{
		SeriesConcurrency: 1,
		TmpDir:            tmpDir,
		Retriever:         &fakeRetriever{body: "dicom-bytes"},
		Store:             store,
	}

	task := NewTask(context.Background(), series, wado.PriorityKey{}, false, wado.OpenDefault)
	if err := m.Run(context.Background(), task); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("reading tmp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files written for a duplicate SOP instance, found %d", len(entries))
	}
}

func TestManagerRunRespectsCancellation(t *testing.T) {
	tmpDir := t.TempDir()

	series := wado.SeriesRef{
		SeriesInstanceUID: "series1",
		StudyInstanceUID:  "study1",
		Instances: []wado.SopInstanceRef{
			{SOPInstanceUID: "sop1"},
		},
	}

	store := hierarchy.NewMemoryStore()
	store.PutStudy(hierarchy.Study{UID: "study1"})
	store.PutSeries(hierarchy.Series{UID: "series1", StudyUID: "study1"})

	m := &Manager{
		SeriesConcurrency: 1,
		TmpDir:            tmpDir,
		Retriever:         &fakeRetriever{body: "dicom-bytes"},
		Store:             store,
	}

	task := NewTask(context.Background(), series, wado.PriorityKey{}, false, wado.OpenDefault)
	task.Cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background(), task) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on cancellation: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return promptly after cancellation")
	}

	if task.Status() != wado.StatusCancelled {
		t.Errorf("task status = %v, want StatusCancelled", task.Status())
	}
}
