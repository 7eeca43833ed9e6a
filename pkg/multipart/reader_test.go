package multipart

import (
	"io"
	"strings"
	"testing"
)

const sampleBody = "preamble ignored\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: application/dicom\r\n" +
	"\r\n" +
	"part-one-bytes" +
	"\r\n--BOUNDARY\r\n" +
	"Content-Type: application/dicom\r\n" +
	"\r\n" +
	"part-two-bytes" +
	"\r\n--BOUNDARY--\r\n"

func TestBoundaryFromContentType(t *testing.T) {
	boundary, err := BoundaryFromContentType(`multipart/related; type="application/dicom"; boundary=BOUNDARY`)
	if err != nil {
		t.Fatalf("BoundaryFromContentType failed: %v", err)
	}
	if boundary != "BOUNDARY" {
		t.Errorf("boundary = %q, want BOUNDARY", boundary)
	}
}

func TestBoundaryFromContentTypeMissingBoundary(t *testing.T) {
	_, err := BoundaryFromContentType("multipart/related")
	if err == nil {
		t.Fatal("expected an error for a content type with no boundary param")
	}
}

func TestReadsEachPartInOrder(t *testing.T) {
	r := New(strings.NewReader(sampleBody), "BOUNDARY")

	ok, err := r.ReadBoundary()
	if err != nil || !ok {
		t.Fatalf("ReadBoundary (part 1) = %v, %v", ok, err)
	}
	data, err := io.ReadAll(r.NewPartInputStream())
	if err != nil {
		t.Fatalf("reading part 1: %v", err)
	}
	if string(data) != "part-one-bytes" {
		t.Errorf("part 1 = %q, want part-one-bytes", data)
	}

	ok, err = r.ReadBoundary()
	if err != nil || !ok {
		t.Fatalf("ReadBoundary (part 2) = %v, %v", ok, err)
	}
	data, err = io.ReadAll(r.NewPartInputStream())
	if err != nil {
		t.Fatalf("reading part 2: %v", err)
	}
	if string(data) != "part-two-bytes" {
		t.Errorf("part 2 = %q, want part-two-bytes", data)
	}

	ok, err = r.ReadBoundary()
	if err != nil {
		t.Fatalf("ReadBoundary (closing) returned error: %v", err)
	}
	if ok {
		t.Error("expected ReadBoundary to return false at the closing boundary")
	}
}
