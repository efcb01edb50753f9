package store

import (
	"context"
	"testing"
)

func TestCancelRegistry(t *testing.T) {
	r := NewCancelRegistry(nil)
	r.addStore("s")

	calls := 0
	r.Register("s", "load", func() { calls++ })
	if !r.Pending("s", "load") {
		t.Fatal("Pending = false after Register")
	}

	if !r.Cancel("s", "load") {
		t.Error("Cancel() = false")
	}
	if r.Cancel("s", "load") {
		t.Error("second Cancel() = true")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCancelRegistryClear(t *testing.T) {
	r := NewCancelRegistry(nil)
	r.addStore("s")

	called := false
	r.Register("s", "load", func() { called = true })
	r.Clear("s", "load")

	if r.Cancel("s", "load") || called {
		t.Error("cleared cancel function was called")
	}
}

func TestSetupCancelToken(t *testing.T) {
	r := NewCancelRegistry(nil)
	r.addStore("s")

	ctx := r.SetupCancelToken(context.Background(), "s", "load")
	if ctx.Err() != nil {
		t.Fatal("context cancelled early")
	}
	r.Cancel("s", "load")
	if ctx.Err() != context.Canceled {
		t.Errorf("ctx.Err() = %v, want Canceled", ctx.Err())
	}
}

func TestRegisterReplacesWithoutCalling(t *testing.T) {
	r := NewCancelRegistry(nil)
	r.addStore("s")

	first, second := 0, 0
	r.Register("s", "load", func() { first++ })
	r.Register("s", "load", func() { second++ })
	r.Cancel("s", "load")

	if first != 0 || second != 1 {
		t.Errorf("first = %d, second = %d", first, second)
	}
}

func TestSetupCancelOutsideDispatch(t *testing.T) {
	called := false
	if SetupCancel(context.Background(), func() { called = true }) {
		t.Error("SetupCancel outside dispatch = true")
	}
	if called {
		t.Error("fn called outside dispatch")
	}
}

func TestClearOwnedKeepsNewerEntry(t *testing.T) {
	r := NewCancelRegistry(nil)
	r.addStore("s")

	r.replace("s", "load", func() {}, 2)
	r.clearOwned("s", "load", 1)
	if !r.Pending("s", "load") {
		t.Error("clearOwned removed an entry owned by another dispatch")
	}
	r.clearOwned("s", "load", 2)
	if r.Pending("s", "load") {
		t.Error("clearOwned kept its own entry")
	}
}

func TestSetupCancelTokenInsideDispatch(t *testing.T) {
	tokens := make(chan context.Context, 1)
	var reg *Registry
	reg = mustCreate(t, Declarations{
		"s": {
			"load": AsyncFunc(func(ctx context.Context, args ...any) (any, error) {
				tctx := reg.Cancellations().SetupCancelToken(ctx, "s", "load")
				tokens <- tctx
				release, _ := args[0].(chan struct{})
				select {
				case <-tctx.Done():
					return nil, tctx.Err()
				case <-release:
					return "done", nil
				}
			}),
		},
	})
	load := reg.MustStore("s").MustAsync("load")

	t.Run("settle clears the entry", func(t *testing.T) {
		release := make(chan struct{})
		f := load.Dispatch(context.Background(), release)
		<-tokens
		close(release)
		if o := waitFuture(t, f); o.Status != StatusSuccess {
			t.Fatalf("Status = %v, want success", o.Status)
		}
		if reg.Cancellations().Pending("s", "load") {
			t.Error("Pending = true after the call settled")
		}
	})

	t.Run("cancel reaches the dispatch", func(t *testing.T) {
		f := load.Dispatch(context.Background(), make(chan struct{}))
		tctx := <-tokens
		if !load.Cancel() {
			t.Fatal("Cancel() = false")
		}
		if tctx.Err() != context.Canceled {
			t.Errorf("token ctx.Err() = %v, want Canceled", tctx.Err())
		}
		if o := waitFuture(t, f); o.Status != StatusCancelled {
			t.Errorf("Status = %v, want cancelled", o.Status)
		}
		if load.Loading() {
			t.Error("Loading = true after cancel")
		}
	})
}
