package store

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func TestRegistryStoreNotFound(t *testing.T) {
	reg := New()
	_, err := reg.Store("missing")

	var nf *StoreNotFoundError
	if !errors.As(err, &nf) || nf.Name != "missing" {
		t.Fatalf("Store() error = %v, want StoreNotFoundError", err)
	}
	if !errors.Is(err, ErrStoreNotFound) {
		t.Error("errors.Is(err, ErrStoreNotFound) = false")
	}
}

func TestRegistryMustStorePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustStore did not panic")
		}
	}()
	New().MustStore("missing")
}

func TestRegistryRegister(t *testing.T) {
	reg := New()
	err := reg.Register(Declarations{
		"b": {"x": 1},
		"a": {"y": 2},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got := reg.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Names() = %v", got)
	}

	err = reg.Register(Declarations{"c": {}, "a": {}})
	if !errors.Is(err, ErrDuplicateStore) {
		t.Errorf("duplicate Register() error = %v", err)
	}
	if _, err := reg.Store("c"); err == nil {
		t.Error("failed Register added store c")
	}
}

func TestRegistryRegisterInvalid(t *testing.T) {
	reg := New()
	err := reg.Register(Declarations{"s": {"bad": func(int) {}}})
	if !errors.Is(err, ErrInvalidDeclaration) {
		t.Errorf("Register() error = %v, want ErrInvalidDeclaration", err)
	}
	if len(reg.Names()) != 0 {
		t.Error("invalid declaration registered a store")
	}
}

func TestRegistriesAreIsolated(t *testing.T) {
	decls := Declarations{
		"s": {
			"n":   0,
			"set": SyncFunc(func(args ...any) Result { return Delta{"n": args[0]} }),
		},
	}
	a := mustCreate(t, decls)
	b := mustCreate(t, decls)

	a.MustStore("s").MustSync("set").Dispatch(5)
	if v, _ := b.MustStore("s").Value("n"); v != 0 {
		t.Errorf("registry b saw n = %v", v)
	}
}

func TestDeclarationCopiedAtRegistration(t *testing.T) {
	decl := Declaration{"x": 1}
	reg := mustCreate(t, Declarations{"s": decl})
	decl["x"] = 2
	decl["y"] = 3

	s := reg.MustStore("s")
	if v, _ := s.Value("x"); v != 1 {
		t.Errorf("x = %v, want 1", v)
	}
	if _, ok := s.Kind("y"); ok {
		t.Error("field added after registration is visible")
	}
}

func TestStoreActionLookup(t *testing.T) {
	reg := mustCreate(t, Declarations{
		"s": {
			"v":    1,
			"sync": SyncFunc(func(args ...any) Result { return nil }),
			"async": AsyncFunc(func(ctx context.Context, args ...any) (any, error) {
				return nil, nil
			}),
		},
	})
	s := reg.MustStore("s")

	if _, err := s.Async("sync"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Async(sync) error = %v", err)
	}
	if _, err := s.Sync("async"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Sync(async) error = %v", err)
	}
	if _, err := s.Async("v"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Async(v) error = %v", err)
	}
	if got := s.Fields(); !reflect.DeepEqual(got, []string{"async", "sync", "v"}) {
		t.Errorf("Fields() = %v", got)
	}
	if _, ok := s.Value("sync"); ok {
		t.Error("sync action has a state value")
	}
}

func TestCancelUnknownStoreWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	reg := New(WithLogger(logger))

	if reg.Cancellations().Cancel("ghost", "load") {
		t.Error("Cancel on unknown store reported true")
	}
	ctx := reg.Cancellations().SetupCancelToken(context.Background(), "ghost", "load")
	if ctx != context.Background() {
		t.Error("SetupCancelToken on unknown store returned a new context")
	}
	if !strings.Contains(buf.String(), "unknown store") {
		t.Errorf("log output = %q", buf.String())
	}
}
