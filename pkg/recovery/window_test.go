package recovery

import (
	"context"
	"testing"
	"time"
)

func TestMemoryWindow_Unset(t *testing.T) {
	w := NewMemoryWindow()

	_, ok, err := w.ResumeAt(context.Background())
	if err != nil {
		t.Fatalf("ResumeAt failed: %v", err)
	}
	if ok {
		t.Error("Expected no window before Activate")
	}
}

func TestMemoryWindow_ActivateAndRead(t *testing.T) {
	w := NewMemoryWindow()
	resumeAt := time.Now().Add(30 * time.Second)

	if err := w.Activate(context.Background(), resumeAt); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	got, ok, err := w.ResumeAt(context.Background())
	if err != nil || !ok {
		t.Fatalf("ResumeAt: ok=%v err=%v", ok, err)
	}
	if !got.Equal(resumeAt) {
		t.Errorf("ResumeAt = %v, want %v", got, resumeAt)
	}
}

func TestMemoryWindow_Overwrite(t *testing.T) {
	w := NewMemoryWindow()
	ctx := context.Background()

	first := time.Now().Add(10 * time.Second)
	second := time.Now().Add(90 * time.Second)

	_ = w.Activate(ctx, first)
	_ = w.Activate(ctx, second)

	got, _, _ := w.ResumeAt(ctx)
	if !got.Equal(second) {
		t.Errorf("ResumeAt = %v, want the later window %v", got, second)
	}
}

func TestNewRedisWindow_NilClientPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisWindow should panic with nil redis client")
		}
	}()
	NewRedisWindow(nil)
}
