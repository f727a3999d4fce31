package stores

import (
	"canvas-editor/core"
	"canvas-editor/stores/memory"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

// failingKV fails every call with err.
type failingKV struct{ err error }

func (f failingKV) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	return nil, f.err
}
func (f failingKV) Put(ctx context.Context, namespace, key string, value []byte) error {
	return f.err
}
func (f failingKV) Delete(ctx context.Context, namespace, key string) error { return f.err }

func testProject() *core.Project {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	page := core.NewPage("Page 1")
	page.Elements = append(page.Elements, core.NewTextElement(10, 20, 100, 40, 1))
	return &core.Project{
		ID:            "project-1",
		Name:          "Demo",
		Pages:         []core.Page{page},
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedBy:     "user-1",
		Collaborators: []string{"user-1"},
	}
}

func TestBridge_ProjectRoundTrip(t *testing.T) {
	bridge := NewBridge(memory.NewStore(), "user-1")
	ctx := context.Background()

	want := testProject()
	if err := bridge.SaveProject(ctx, want); err != nil {
		t.Fatalf("SaveProject() failed: %v", err)
	}
	got, err := bridge.LoadProject(ctx)
	if err != nil {
		t.Fatalf("LoadProject() failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadProject() = %+v, want %+v", got, want)
	}
}

func TestBridge_LoadProjectAbsent(t *testing.T) {
	bridge := NewBridge(memory.NewStore(), "user-1")

	got, err := bridge.LoadProject(context.Background())
	if err != nil || got != nil {
		t.Errorf("LoadProject() = %v, %v; want nil, nil", got, err)
	}
}

func TestBridge_MalformedIsAbsent(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"garbage project", KeyCurrentProject, "{not json"},
		{"project without pages", KeyCurrentProject, `{"id":"p","pages":[]}`},
		{"unknown element type", KeyCurrentProject, `{"id":"p","pages":[{"id":"a","elements":[{"id":"e","type":"video"}]}]}`},
		{"garbage user", KeyUser, "[]"},
		{"user without id", KeyUser, `{"name":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := memory.NewStore()
			ctx := context.Background()
			if err := kv.Put(ctx, "user-1", tt.key, []byte(tt.value)); err != nil {
				t.Fatal(err)
			}
			bridge := NewBridge(kv, "user-1")

			project, err := bridge.LoadProject(ctx)
			if err != nil || project != nil {
				t.Errorf("LoadProject() = %v, %v; want nil, nil", project, err)
			}
			user, err := bridge.LoadUser(ctx)
			if err != nil || user != nil {
				t.Errorf("LoadUser() = %v, %v; want nil, nil", user, err)
			}
		})
	}
}

func TestBridge_NullElementsNormalised(t *testing.T) {
	kv := memory.NewStore()
	ctx := context.Background()
	if err := kv.Put(ctx, "user-1", KeyCurrentProject, []byte(`{"id":"p","pages":[{"id":"a","name":"Page 1","elements":null}]}`)); err != nil {
		t.Fatal(err)
	}

	got, err := NewBridge(kv, "user-1").LoadProject(ctx)
	if err != nil || got == nil {
		t.Fatalf("LoadProject() = %v, %v", got, err)
	}
	if got.Pages[0].Elements == nil || got.Collaborators == nil {
		t.Error("nil slices were not normalised")
	}
}

func TestBridge_User(t *testing.T) {
	bridge := NewBridge(memory.NewStore(), "user-1")
	ctx := context.Background()

	want := &core.User{
		Profile: core.Profile{ID: "user-1", Name: "Ada Lovelace", Email: "ada@example.com", Avatar: "https://example.com/a.png"},
		Token:   "token",
	}
	if err := bridge.SaveUser(ctx, want); err != nil {
		t.Fatalf("SaveUser() failed: %v", err)
	}
	got, err := bridge.LoadUser(ctx)
	if err != nil {
		t.Fatalf("LoadUser() failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadUser() = %+v, want %+v", got, want)
	}

	if err := bridge.ClearUser(ctx); err != nil {
		t.Fatalf("ClearUser() failed: %v", err)
	}
	if got, _ := bridge.LoadUser(ctx); got != nil {
		t.Errorf("LoadUser() after ClearUser() = %+v", got)
	}
	if err := bridge.ClearUser(ctx); err != nil {
		t.Errorf("ClearUser() on empty store error = %v", err)
	}
}

func TestBridge_NamespacesAreSeparate(t *testing.T) {
	kv := memory.NewStore()
	ctx := context.Background()

	if err := NewBridge(kv, "alice").SaveProject(ctx, testProject()); err != nil {
		t.Fatal(err)
	}
	got, err := NewBridge(kv, "bob").LoadProject(ctx)
	if err != nil || got != nil {
		t.Errorf("bob sees alice's project: %v, %v", got, err)
	}
}

func TestBridge_BackendErrors(t *testing.T) {
	boom := errors.New("disk full")
	bridge := NewBridge(failingKV{err: boom}, "user-1")
	ctx := context.Background()

	if err := bridge.SaveProject(ctx, testProject()); !errors.Is(err, boom) {
		t.Errorf("SaveProject() error = %v, want wrapped %v", err, boom)
	}
	if _, err := bridge.LoadProject(ctx); !errors.Is(err, boom) {
		t.Errorf("LoadProject() error = %v, want wrapped %v", err, boom)
	}
}
