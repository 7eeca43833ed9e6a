// Package dicomrewrite reads a DICOM dataset from a stream, overrides a
// caller-specified set of top-level tags with values supplied by the
// enclosing patient/study, and re-emits a complete DICOM file with the
// original transfer syntax preserved. It is built on
// github.com/suyashkumar/dicom.
package dicomrewrite

import (
	"io"
	"os"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/otcheredev/wado-download-engine/internal/wado"
)

// OverrideSource resolves the authoritative value for a tag from the
// enclosing patient/study, or reports absence. Implemented by the
// object-model adapter.
type OverrideSource interface {
	// Value returns (value, true) if the patient or study holds an
	// authoritative value for tag t. Patient wins over study on
	// conflict.
	Value(t tag.Tag) (string, bool)
}

// Rewrite parses src, overrides every tag in overrideTags using source,
// and writes a complete DICOM file (preamble + dataset) to destPath,
// preserving the original transfer syntax. On any failure other than
// cancellation, destPath is removed so the caller never observes a
// partial file.
//
// suyashkumar/dicom keeps pixel data resident in the parsed Dataset
// (as in-memory frame.Frame values) rather than spooling bulk-data
// elements to sidecar files on disk; passing a nil frame channel to
// Parse, as below, selects exactly that behavior. There is therefore
// no on-disk sidecar for this path to clean up.
func Rewrite(src io.Reader, destPath string, overrideTags []tag.Tag, source OverrideSource) (bytesWritten int64, err error) {
	dataset, parseErr := dicom.Parse(src, 0, nil)
	if parseErr != nil {
		if isUnsupportedTransferSyntax(parseErr) {
			return 0, wado.ErrUnsupportedTsuid
		}
		return 0, wado.ErrTruncatedDicom
	}

	for _, t := range overrideTags {
		value, ok := source.Value(t)
		if !ok {
			continue
		}
		applyOverride(&dataset, t, value)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return 0, err
	}

	counting := &countingWriter{w: f}
	writeErr := dicom.Write(counting, dataset)
	closeErr := f.Close()

	if writeErr != nil || closeErr != nil {
		os.Remove(destPath)
		if writeErr != nil {
			return 0, writeErr
		}
		return 0, closeErr
	}

	return counting.n, nil
}

var (
	tagPatientID        = tag.Tag{Group: 0x0010, Element: 0x0020}
	tagStudyInstanceUID = tag.Tag{Group: 0x0020, Element: 0x000D}
)

// ReadIdentity opens the DICOM file at path and returns its PatientID
// and StudyInstanceUID element values (empty string if either is
// absent). Used to reconcile a worklist entry's pseudo UIDs against
// the headers of the file actually delivered by the origin.
func ReadIdentity(path string) (patientUID, studyUID string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", "", err
	}

	dataset, err := dicom.Parse(f, info.Size(), nil)
	if err != nil {
		return "", "", err
	}

	return elementString(dataset, tagPatientID), elementString(dataset, tagStudyInstanceUID), nil
}

func elementString(dataset dicom.Dataset, t tag.Tag) string {
	for _, el := range dataset.Elements {
		if el.Tag != t {
			continue
		}
		if vals, ok := el.Value.GetValue().([]string); ok && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

func applyOverride(dataset *dicom.Dataset, t tag.Tag, value string) {
	for i, el := range dataset.Elements {
		if el.Tag == t {
			if newEl, err := dicom.NewElement(t, value); err == nil {
				dataset.Elements[i] = newEl
			}
			return
		}
	}
	if newEl, err := dicom.NewElement(t, value); err == nil {
		dataset.Elements = append(dataset.Elements, newEl)
	}
}

func isUnsupportedTransferSyntax(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsFold(msg, "transfer syntax") || containsFold(msg, "unsupported")
}

func containsFold(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if equalFold(s[i:i+len(substr)], substr) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// countingWriter tallies bytes written so Rewrite can report
// InterruptedPartial-equivalent counts on the success path.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
