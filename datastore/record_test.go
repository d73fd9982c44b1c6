package datastore

import "testing"

func TestNewRecordMintsUniqueIDs(t *testing.T) {
	a := NewRecord("Post", nil)
	b := NewRecord("Post", nil)

	if a.ID() == "" || b.ID() == "" {
		t.Fatal("records should get generated IDs")
	}
	if a.ID() == b.ID() {
		t.Error("two records should not share an ID")
	}
	if a.Model() != "Post" {
		t.Errorf("Model = %q, want Post", a.Model())
	}
}

func TestMapRecordCopiesFields(t *testing.T) {
	src := map[string]any{"title": "hello"}
	r := NewRecordWithID("Post", "p1", src)

	src["title"] = "tampered"
	if v, _ := r.Field("title"); v != "hello" {
		t.Error("record captured the caller's map instead of copying it")
	}

	fields := r.Fields()
	fields["title"] = "tampered"
	if v, _ := r.Field("title"); v != "hello" {
		t.Error("Fields() leaked the internal map")
	}
}

func TestWithFields(t *testing.T) {
	base := NewRecordWithID("Post", "p1", map[string]any{"title": "a", "rating": 3})
	merged := base.WithFields(map[string]any{"rating": 5})

	if merged.ID() != "p1" || merged.Model() != "Post" {
		t.Error("identity should be preserved across WithFields")
	}
	if v, _ := merged.Field("rating"); v != 5 {
		t.Errorf("rating = %v, want 5", v)
	}
	if v, _ := merged.Field("title"); v != "a" {
		t.Errorf("title = %v, want a", v)
	}
	if v, _ := base.Field("rating"); v != 3 {
		t.Error("WithFields mutated the base record")
	}
}

func TestFieldPresence(t *testing.T) {
	r := NewRecordWithID("Post", "p1", map[string]any{"title": "x"})

	if _, ok := r.Field("missing"); ok {
		t.Error("missing field reported as present")
	}
	if v, ok := r.Field("title"); !ok || v != "x" {
		t.Error("present field not found")
	}
}
