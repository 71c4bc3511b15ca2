package security

import (
	"sync"
	"testing"
)

func TestValidateDirectory_PathTraversal(t *testing.T) {
	v := NewValidator(1024, 1024)

	tests := []struct {
		path      string
		shouldErr bool
	}{
		{"raccoon", false},
		{"www.worldclassfireworks.com", false},
		{"vendors/raccoon", false},
		{"../etc", true},
		{"/etc/passwd", true},
		{"dir/../raccoon", false},
		{"dir/../../etc", true},
		{"..", true},
		{"", true},
		{"..hidden", false},
	}

	for _, tt := range tests {
		err := v.ValidateDirectory(tt.path)
		if tt.shouldErr && err == nil {
			t.Errorf("expected error for path: %s", tt.path)
		}
		if !tt.shouldErr && err != nil {
			t.Errorf("unexpected error for path %s: %v", tt.path, err)
		}
	}
}

func TestValidateName(t *testing.T) {
	v := NewValidator(0, 0)

	for _, name := range []string{"RR123-big-bang.png", "What A Girl Wants Backpack.png", "..png"} {
		if err := v.ValidateName(name); err != nil {
			t.Errorf("unexpected error for %q: %v", name, err)
		}
	}
	for _, name := range []string{"", "..", "a/b.png", `a\b.png`} {
		if err := v.ValidateName(name); err == nil {
			t.Errorf("expected error for %q", name)
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	v := NewValidator(100, 1000)

	if err := v.ValidateFileSize(50); err != nil {
		t.Errorf("expected no error for size 50, got: %v", err)
	}

	if err := v.ValidateFileSize(150); err == nil {
		t.Error("expected error for size 150 exceeding limit 100")
	}

	if err := NewValidator(0, 0).ValidateFileSize(1 << 40); err != nil {
		t.Errorf("expected disabled limit, got: %v", err)
	}
}

func TestAddUploadedSize_ExceedsTotal(t *testing.T) {
	v := NewValidator(1024, 500)

	if err := v.AddUploadedSize(400); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := v.AddUploadedSize(200); err == nil {
		t.Error("expected error when run total exceeds limit")
	}

	if got := v.GetCurrentTotalSize(); got != 400 {
		t.Errorf("rejected reservation was counted: total %d", got)
	}

	if err := v.AddUploadedSize(100); err != nil {
		t.Errorf("expected reservation within budget, got: %v", err)
	}

	v.Reset()
	if got := v.GetCurrentTotalSize(); got != 0 {
		t.Errorf("expected reset total, got %d", got)
	}
}

func TestAddUploadedSize_Concurrent(t *testing.T) {
	v := NewValidator(0, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = v.AddUploadedSize(100)
		}()
	}
	wg.Wait()

	if got := v.GetCurrentTotalSize(); got != 1000 {
		t.Errorf("expected budget to fill exactly, got %d", got)
	}
}
