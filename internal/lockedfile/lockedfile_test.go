package lockedfile

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestMutexExcludes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", ".lock")
	mu := MutexAt(path)

	unlock, err := mu.Lock()
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	// flock locks belong to the open file description, so a second
	// descriptor in the same process blocks like another process would.
	acquired := make(chan func())
	go func() {
		unlock2, err := MutexAt(path).Lock()
		if err != nil {
			t.Errorf("second Lock() error = %v", err)
			close(acquired)
			return
		}
		acquired <- unlock2
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock() succeeded while the first was held")
	case <-time.After(100 * time.Millisecond):
	}

	unlock()
	select {
	case unlock2, ok := <-acquired:
		if ok {
			unlock2()
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second Lock() did not succeed after unlock")
	}
}

func TestMutexSerializes(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := MutexAt(path).Lock()
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Errorf("%d holders at once, want 1", maxSeen)
	}
}

func TestMutexAtEmptyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MutexAt(\"\") did not panic")
		}
	}()
	MutexAt("")
}
