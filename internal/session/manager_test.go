package session

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"chatmatch/pkg/interfaces"
	"chatmatch/pkg/types"
)

type recordedEnd struct {
	id     string
	reason string
}

type fakeRecorder struct {
	mu     sync.Mutex
	starts []types.SessionRecord
	ends   []recordedEnd
}

func (f *fakeRecorder) RecordSessionStart(record types.SessionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, record)
}

func (f *fakeRecorder) RecordSessionEnd(sessionID string, endedAt time.Time, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, recordedEnd{id: sessionID, reason: reason})
}

func TestManager_InterfaceCompliance(t *testing.T) {
	var _ interfaces.SessionTracker = NewManager(nil, nil)
}

func TestManager_OpenRecordsStart(t *testing.T) {
	recorder := &fakeRecorder{}
	manager := NewManager(recorder, nil)

	id := manager.Open([]string{"Music"})
	if id == "" {
		t.Fatal("Open returned empty session id")
	}
	if manager.Active() != 1 {
		t.Errorf("Active() = %d, want 1", manager.Active())
	}
	if len(recorder.starts) != 1 || recorder.starts[0].ID != id {
		t.Fatalf("expected one recorded start for %s, got %+v", id, recorder.starts)
	}
	if !reflect.DeepEqual(recorder.starts[0].SharedInterests, []string{"Music"}) {
		t.Errorf("shared interests = %v", recorder.starts[0].SharedInterests)
	}

	record, err := manager.Get(id)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if record.ID != id {
		t.Errorf("Get() returned %s", record.ID)
	}
}

func TestManager_OpenGeneratesUniqueIDs(t *testing.T) {
	manager := NewManager(nil, nil)
	first := manager.Open(nil)
	second := manager.Open(nil)
	if first == second {
		t.Error("session ids must be unique")
	}
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	recorder := &fakeRecorder{}
	manager := NewManager(recorder, nil)
	id := manager.Open([]string{"Tech"})

	manager.Close(id, types.EndReasonPartnerDisconnected)
	manager.Close(id, types.EndReasonPartnerDisconnected)
	manager.Close("unknown", types.EndReasonPartnerDisconnected)

	if manager.Active() != 0 {
		t.Errorf("Active() = %d after close", manager.Active())
	}
	if len(recorder.ends) != 1 {
		t.Fatalf("expected exactly one recorded end, got %d", len(recorder.ends))
	}
	if recorder.ends[0].reason != types.EndReasonPartnerDisconnected {
		t.Errorf("reason = %q", recorder.ends[0].reason)
	}
	if _, err := manager.Get(id); err != ErrSessionNotFound {
		t.Errorf("Get() after close = %v, want ErrSessionNotFound", err)
	}
}

func TestManager_CloseAll(t *testing.T) {
	recorder := &fakeRecorder{}
	manager := NewManager(recorder, nil)
	manager.Open(nil)
	manager.Open(nil)

	if closed := manager.CloseAll(types.EndReasonShutdown); closed != 2 {
		t.Errorf("CloseAll() = %d, want 2", closed)
	}
	if manager.Active() != 0 {
		t.Error("sessions remain after CloseAll")
	}
	for _, end := range recorder.ends {
		if end.reason != types.EndReasonShutdown {
			t.Errorf("reason = %q, want shutdown", end.reason)
		}
	}
}

func TestManager_NilRecorder(t *testing.T) {
	manager := NewManager(nil, nil)
	id := manager.Open([]string{"Music"})
	manager.Close(id, types.EndReasonPartnerDisconnected)
}
