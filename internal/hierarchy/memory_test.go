package hierarchy

import (
	"testing"

	"github.com/suyashkumar/dicom/pkg/tag"
)

func TestMemoryStoreParentLookups(t *testing.T) {
	s := NewMemoryStore()
	s.PutPatient(Patient{UID: "pat1", Name: "Doe^Jane"})
	s.PutStudy(Study{UID: "study1", PatientUID: "pat1", Description: "CT Chest"})
	s.PutSeries(Series{UID: "series1", StudyUID: "study1"})

	study, ok := s.ParentOfSeries("series1")
	if !ok || study.UID != "study1" {
		t.Fatalf("ParentOfSeries = %v, %v, want study1, true", study, ok)
	}

	patient, ok := s.ParentOfStudy("study1")
	if !ok || patient.UID != "pat1" {
		t.Fatalf("ParentOfStudy = %v, %v, want pat1, true", patient, ok)
	}
}

func TestMemoryStoreHasSOPInstanceCrossesSeries(t *testing.T) {
	s := NewMemoryStore()
	s.PutStudy(Study{UID: "study1"})
	s.PutSeries(Series{UID: "seriesA", StudyUID: "study1"})
	s.PutSeries(Series{UID: "seriesB", StudyUID: "study1"})

	s.RecordSOPInstance("seriesA", "sop1")

	if !s.HasSOPInstance("study1", "sop1") {
		t.Errorf("expected sop1 visible study-wide after being recorded under seriesA")
	}
	if s.HasSOPInstance("study1", "sop2") {
		t.Errorf("expected sop2 absent")
	}
}

func TestMergePatientUIDKeepsChildrenAndOlderName(t *testing.T) {
	s := NewMemoryStore()
	s.PutPatient(Patient{UID: "tempPat", Name: "Doe^Jane"})
	s.PutPatient(Patient{UID: "realPat"})
	s.PutStudy(Study{UID: "study1", PatientUID: "tempPat"})

	if err := s.MergePatientUID("tempPat", "realPat"); err != nil {
		t.Fatalf("MergePatientUID failed: %v", err)
	}

	study, ok := s.ParentOfStudy("study1")
	if !ok || study.PatientUID != "realPat" {
		t.Fatalf("study parent not re-pointed to realPat: %+v", study)
	}

	patient, ok := s.patients["realPat"]
	if !ok || patient.Name != "Doe^Jane" {
		t.Fatalf("expected merged name preserved, got %+v", patient)
	}

	if _, stillExists := s.patients["tempPat"]; stillExists {
		t.Errorf("expected tempPat removed after merge")
	}
}

func TestMergePatientUIDIdempotent(t *testing.T) {
	s := NewMemoryStore()
	s.PutPatient(Patient{UID: "pat1"})
	if err := s.MergePatientUID("pat1", "pat1"); err != nil {
		t.Fatalf("self-merge should be a no-op, got error: %v", err)
	}
}

func TestTagValuePatientWinsOverStudy(t *testing.T) {
	s := NewMemoryStore()
	patientName := tag.Tag{Group: 0x0010, Element: 0x0010}

	s.PutPatient(Patient{UID: "pat1", Values: map[tag.Tag]string{patientName: "Doe^Jane"}})
	s.PutStudy(Study{UID: "study1", PatientUID: "pat1", Values: map[tag.Tag]string{patientName: "Wrong^Name"}})
	s.PutSeries(Series{UID: "series1", StudyUID: "study1"})

	v, ok := s.TagValue("series1", patientName)
	if !ok || v != "Doe^Jane" {
		t.Errorf("TagValue = %q, %v, want Doe^Jane, true", v, ok)
	}
}
