package syncexpr

import (
	"strings"
	"testing"

	"github.com/alvintu/swift-ui-aws-amplify/datastore"
)

func TestExpressionEvaluation(t *testing.T) {
	expr, err := New("Post", "rating > 4")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if expr.ModelName() != "Post" {
		t.Errorf("ModelName = %q, want Post", expr.ModelName())
	}

	tests := []struct {
		name   string
		fields map[string]any
		want   bool
	}{
		{"above threshold", map[string]any{"rating": 5}, true},
		{"at threshold", map[string]any{"rating": 4}, false},
		{"below threshold", map[string]any{"rating": 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := datastore.NewRecord("Post", tt.fields)
			got, err := expr.Evaluate(r)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpressionBuiltinVariables(t *testing.T) {
	expr, err := New("Post", `model == "Post" && id != ""`)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got, err := expr.Evaluate(datastore.NewRecord("Post", nil))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !got {
		t.Error("id and model should be available to filters")
	}
}

func TestExpressionCombinedPredicate(t *testing.T) {
	expr := MustNew("Comment", `approved == true && len(body) > 0`)

	r := datastore.NewRecord("Comment", map[string]any{"approved": true, "body": "hi"})
	if got, err := expr.Evaluate(r); err != nil || !got {
		t.Errorf("Evaluate = (%v, %v), want (true, nil)", got, err)
	}

	r = datastore.NewRecord("Comment", map[string]any{"approved": false, "body": "hi"})
	if got, err := expr.Evaluate(r); err != nil || got {
		t.Errorf("Evaluate = (%v, %v), want (false, nil)", got, err)
	}
}

func TestExpressionErrors(t *testing.T) {
	t.Run("empty model", func(t *testing.T) {
		if _, err := New("", "true"); err == nil {
			t.Error("expected error for empty model")
		}
	})

	t.Run("empty filter", func(t *testing.T) {
		if _, err := New("Post", ""); err == nil {
			t.Error("expected error for empty filter")
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := New("Post", "rating >")
		if err == nil {
			t.Fatal("expected compile error")
		}
		if !strings.Contains(err.Error(), "Post") {
			t.Errorf("compile error should name the model: %v", err)
		}
	})
}

func TestMatchAll(t *testing.T) {
	expr := MatchAll("Post")
	if expr.ModelName() != "Post" {
		t.Errorf("ModelName = %q, want Post", expr.ModelName())
	}
	got, err := expr.Evaluate(datastore.NewRecord("Post", nil))
	if err != nil || !got {
		t.Errorf("MatchAll should match everything, got (%v, %v)", got, err)
	}
}

func TestCompilerAdapter(t *testing.T) {
	var compile datastore.ExpressionCompiler = Compiler

	expr, err := compile("Post", "rating >= 1")
	if err != nil {
		t.Fatalf("Compiler failed: %v", err)
	}
	if expr.ModelName() != "Post" {
		t.Errorf("ModelName = %q", expr.ModelName())
	}
}
