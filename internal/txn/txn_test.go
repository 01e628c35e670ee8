package txn

import (
	"errors"
	"testing"

	"github.com/foxbatdb/foxbatdb/internal/keyindex"
)

func noopHooks() Hooks {
	return Hooks{
		AppendBegin:  func(uint64) error { return nil },
		AppendFinish: func() error { return nil },
		AppendFailed: func() error { return nil },
		Rollback:     func([]UndoEntry) {},
	}
}

func TestTx_beginExecLifecycle(t *testing.T) {
	tx := New()
	if tx.Active() {
		t.Fatal("fresh Tx reports Active()")
	}
	if err := tx.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if !tx.Active() {
		t.Fatal("Active() = false after Begin()")
	}

	ran := false
	err := tx.Enqueue(QueuedCommand{
		Name: "SET",
		Exec: func() (any, error) { ran = true; return "OK", nil },
	}, func(string) (*keyindex.Locator, bool) { return nil, false })
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	results, err := tx.Exec(noopHooks())
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if !ran {
		t.Error("queued command never executed")
	}
	if len(results) != 1 || results[0].Reply != "OK" {
		t.Errorf("results = %v, want one OK reply", results)
	}
	if tx.Active() {
		t.Error("Active() = true after Exec(), want false (tx should reset)")
	}
}

func TestTx_emptyQueueExecIsNoop(t *testing.T) {
	tx := New()
	tx.Begin()

	beginCalled := false
	hooks := noopHooks()
	hooks.AppendBegin = func(uint64) error { beginCalled = true; return nil }

	results, err := tx.Exec(hooks)
	if err != nil {
		t.Fatalf("Exec() on empty queue error = %v", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
	if beginCalled {
		t.Error("AppendBegin was called for an empty transaction")
	}
}

func TestTx_discardClearsQueue(t *testing.T) {
	tx := New()
	tx.Begin()
	tx.Enqueue(QueuedCommand{Name: "SET", Exec: func() (any, error) { return nil, nil }},
		func(string) (*keyindex.Locator, bool) { return nil, false })

	if err := tx.Discard(); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if tx.Active() {
		t.Error("Active() = true after Discard()")
	}
	if tx.QueueLen() != 0 {
		t.Error("QueueLen() != 0 after Discard()")
	}
}

func TestTx_execRollsBackOnRuntimeError(t *testing.T) {
	tx := New()
	tx.Begin()

	wantErr := errors.New("boom")
	tx.Enqueue(QueuedCommand{
		Name:    "SET",
		IsWrite: true,
		Key:     "k",
		Exec:    func() (any, error) { return nil, wantErr },
	}, func(string) (*keyindex.Locator, bool) { return &keyindex.Locator{Offset: 1}, true })

	rolledBack := false
	hooks := noopHooks()
	hooks.Rollback = func(undo []UndoEntry) {
		rolledBack = true
		if len(undo) != 1 || undo[0].Key != "k" {
			t.Errorf("rollback undo = %v, want one entry for key k", undo)
		}
	}

	failedCalled := false
	hooks.AppendFailed = func() error { failedCalled = true; return nil }

	_, err := tx.Exec(hooks)
	if err == nil {
		t.Fatal("Exec() with a failing command succeeded, want TxError")
	}
	if !rolledBack {
		t.Error("Rollback was not called after a runtime error")
	}
	if !failedCalled {
		t.Error("AppendFailed was not called after a runtime error")
	}
}

func TestTx_execFailsOnWatchedKeyModified(t *testing.T) {
	tx := New()
	tx.Begin()
	tx.Enqueue(QueuedCommand{
		Name: "SET",
		Exec: func() (any, error) { t.Fatal("command should not run once marked failed"); return nil, nil },
	}, func(string) (*keyindex.Locator, bool) { return nil, false })

	tx.MarkFailed()

	_, err := tx.Exec(noopHooks())
	if err == nil {
		t.Fatal("Exec() after MarkFailed() succeeded, want WatchedKeyModified")
	}
}

func TestTx_doubleBeginRejected(t *testing.T) {
	tx := New()
	tx.Begin()
	if err := tx.Begin(); err == nil {
		t.Fatal("nested Begin() succeeded, want AlreadyInTx error")
	}
}

func TestTx_enqueueOutsideTxRejected(t *testing.T) {
	tx := New()
	err := tx.Enqueue(QueuedCommand{Name: "SET"}, func(string) (*keyindex.Locator, bool) { return nil, false })
	if err == nil {
		t.Fatal("Enqueue() outside a transaction succeeded, want NotInTx error")
	}
}

func TestTx_execOutsideTxRejected(t *testing.T) {
	tx := New()
	if _, err := tx.Exec(noopHooks()); err == nil {
		t.Fatal("Exec() outside a transaction succeeded, want NotInTx error")
	}
}
