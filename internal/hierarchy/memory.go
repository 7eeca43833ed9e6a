package hierarchy

import (
	"fmt"
	"sync"

	"github.com/otcheredev/wado-download-engine/internal/wado"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// MemoryStore is an in-memory Store, suitable for tests and for hosts
// that don't keep their own patient/study/series tree.
type MemoryStore struct {
	mu sync.Mutex

	patients map[string]Patient
	studies  map[string]Study
	series   map[string]Series

	listeners []wado.EventSink
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients: make(map[string]Patient),
		studies:  make(map[string]Study),
		series:   make(map[string]Series),
	}
}

// PutPatient, PutStudy, and PutSeries seed the tree; the tests use
// these before any download begins.
func (m *MemoryStore) PutPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Values == nil {
		p.Values = make(map[tag.Tag]string)
	}
	m.patients[p.UID] = p
}

func (m *MemoryStore) PutStudy(s Study) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Values == nil {
		s.Values = make(map[tag.Tag]string)
	}
	m.studies[s.UID] = s
}

func (m *MemoryStore) PutSeries(s Series) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.SOPUIDs == nil {
		s.SOPUIDs = make(map[string]struct{})
	}
	m.series[s.UID] = s
}

func (m *MemoryStore) ParentOfSeries(seriesUID string) (Study, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[seriesUID]
	if !ok {
		return Study{}, false
	}
	st, ok := m.studies[s.StudyUID]
	return st, ok
}

func (m *MemoryStore) ParentOfStudy(studyUID string) (Patient, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.studies[studyUID]
	if !ok {
		return Patient{}, false
	}
	p, ok := m.patients[st.PatientUID]
	return p, ok
}

func (m *MemoryStore) HasSOPInstance(studyUID, sopUID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.series {
		if s.StudyUID != studyUID {
			continue
		}
		if _, ok := s.SOPUIDs[sopUID]; ok {
			return true
		}
	}
	return false
}

func (m *MemoryStore) RecordSOPInstance(seriesUID, sopUID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[seriesUID]
	if !ok {
		return
	}
	if s.SOPUIDs == nil {
		s.SOPUIDs = make(map[string]struct{})
	}
	s.SOPUIDs[sopUID] = struct{}{}
	m.series[seriesUID] = s
}

// MergePatientUID folds oldUID's studies onto newUID. Older metadata
// wins on a per-field conflict: a newUID value already set is kept,
// an unset one is filled from oldUID.
func (m *MemoryStore) MergePatientUID(oldUID, newUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if oldUID == newUID {
		return nil
	}

	oldP, hasOld := m.patients[oldUID]
	if !hasOld {
		return nil
	}
	newP, hasNew := m.patients[newUID]
	if !hasNew {
		newP = Patient{UID: newUID, Values: make(map[tag.Tag]string)}
	}
	if newP.Values == nil {
		newP.Values = make(map[tag.Tag]string)
	}
	if newP.Name == "" {
		newP.Name = oldP.Name
	}
	for t, v := range oldP.Values {
		if _, exists := newP.Values[t]; !exists {
			newP.Values[t] = v
		}
	}
	m.patients[newUID] = newP
	delete(m.patients, oldUID)

	for uid, st := range m.studies {
		if st.PatientUID == oldUID {
			st.PatientUID = newUID
			m.studies[uid] = st
		}
	}

	return nil
}

// MergeStudyUID folds oldUID's series onto newUID. Newer metadata
// wins for the description field; both studies must already share a
// patient or the merge is rejected as unresolvable.
func (m *MemoryStore) MergeStudyUID(oldUID, newUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if oldUID == newUID {
		return nil
	}

	oldS, hasOld := m.studies[oldUID]
	if !hasOld {
		return nil
	}
	newS, hasNew := m.studies[newUID]
	if !hasNew {
		newS = Study{UID: newUID, PatientUID: oldS.PatientUID, Values: make(map[tag.Tag]string)}
	}
	if hasNew && newS.PatientUID != "" && oldS.PatientUID != "" && newS.PatientUID != oldS.PatientUID {
		return fmt.Errorf("%w: study %s and %s belong to different patients", wado.ErrUidCollisionUnresolvable, oldUID, newUID)
	}
	if newS.PatientUID == "" {
		newS.PatientUID = oldS.PatientUID
	}
	if newS.Values == nil {
		newS.Values = make(map[tag.Tag]string)
	}
	if oldS.Description != "" {
		newS.Description = oldS.Description
	}
	for t, v := range oldS.Values {
		newS.Values[t] = v // newer (oldUID being folded in later) wins
	}
	m.studies[newUID] = newS
	delete(m.studies, oldUID)

	for uid, se := range m.series {
		if se.StudyUID == oldUID {
			se.StudyUID = newUID
			m.series[uid] = se
		}
	}

	return nil
}

func (m *MemoryStore) TagValue(seriesUID string, t tag.Tag) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.series[seriesUID]
	if !ok {
		return "", false
	}
	st, ok := m.studies[s.StudyUID]
	if !ok {
		return "", false
	}
	p, hasPatient := m.patients[st.PatientUID]

	if hasPatient {
		if v, ok := p.Values[t]; ok {
			return v, true
		}
	}
	if v, ok := st.Values[t]; ok {
		return v, true
	}
	return "", false
}

func (m *MemoryStore) Publish(e wado.Event) {
	m.mu.Lock()
	listeners := make([]wado.EventSink, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, sink := range listeners {
		sink.Publish(e)
	}
}

func (m *MemoryStore) Subscribe(sink wado.EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, sink)
}
