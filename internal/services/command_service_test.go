package services

import (
	"errors"
	"testing"

	"face-attendance-go/internal/core/models"
)

type fakeClasses []models.Class

func (f fakeClasses) ListClasses() ([]models.Class, error) { return f, nil }

type fakeSession struct {
	selected []string
	reset    []string
	err      error
}

func (f *fakeSession) SelectClass(name string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.selected = append(f.selected, name)
	return 3, nil
}

func (f *fakeSession) ResetSession(name string) bool {
	f.reset = append(f.reset, name)
	return true
}

func TestCommandServiceResolveClass(t *testing.T) {
	svc := NewCommandService(fakeClasses{{Name: "Math 101"}, {Name: "physics-a"}}, nil, nil)

	tests := []struct {
		slug string
		want string
		ok   bool
	}{
		{"math_101", "Math 101", true},
		{"physics-a", "physics-a", true},
		{"biology", "", false},
	}
	for _, tt := range tests {
		got, ok := svc.ResolveClass(tt.slug)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ResolveClass(%q) = %q, %v; want %q, %v", tt.slug, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCommandServiceHandleCommand(t *testing.T) {
	session := &fakeSession{}
	svc := NewCommandService(fakeClasses{{Name: "Math 101"}}, session, session)

	svc.HandleCommand("math_101", CommandSelect, nil)
	svc.HandleCommand("math_101", CommandReset, nil)
	svc.HandleCommand("math_101", "explode", nil)
	svc.HandleCommand("unknown", CommandReset, nil)

	if len(session.selected) != 1 || session.selected[0] != "Math 101" {
		t.Errorf("selected = %v", session.selected)
	}
	if len(session.reset) != 1 || session.reset[0] != "Math 101" {
		t.Errorf("reset = %v", session.reset)
	}

	session.err = errors.New("no training data")
	svc.HandleCommand("math_101", CommandSelect, nil)
	if len(session.selected) != 1 {
		t.Errorf("failed select should not be recorded: %v", session.selected)
	}
}
