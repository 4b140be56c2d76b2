package saga

import (
	"context"
	"errors"
	"testing"
)

type recordedStep struct {
	BaseStep
	log         *[]string
	executeErr  error
	compensated bool
}

func (s *recordedStep) Execute(ctx context.Context) error {
	*s.log = append(*s.log, "exec:"+s.StepName)
	return s.executeErr
}

func (s *recordedStep) Compensate(ctx context.Context) error {
	*s.log = append(*s.log, "comp:"+s.StepName)
	s.compensated = true
	return nil
}

func TestRun_AllStepsSucceed(t *testing.T) {
	var log []string
	err := Run(context.Background(),
		&recordedStep{BaseStep: BaseStep{StepName: "a"}, log: &log},
		&recordedStep{BaseStep: BaseStep{StepName: "b"}, log: &log},
	)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	want := []string{"exec:a", "exec:b"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], log[i])
		}
	}
}

func TestRun_CompensatesInReverseOrder(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	first := &recordedStep{BaseStep: BaseStep{StepName: "a"}, log: &log}
	second := &recordedStep{BaseStep: BaseStep{StepName: "b"}, log: &log}
	failing := &recordedStep{BaseStep: BaseStep{StepName: "c"}, log: &log, executeErr: boom}
	never := &recordedStep{BaseStep: BaseStep{StepName: "d"}, log: &log}

	err := Run(context.Background(), first, second, failing, never)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped original error, got %v", err)
	}

	want := []string{"exec:a", "exec:b", "exec:c", "comp:c", "comp:b", "comp:a"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], log[i])
		}
	}
	// 失败的步骤也被补偿，使其回滚内部已完成的部分工作
	if !failing.compensated {
		t.Error("failing step must be compensated to undo its partial work")
	}
	if never.compensated {
		t.Error("steps after the failure must not be compensated")
	}
}

type failingCompStep struct {
	BaseStep
	log *[]string
}

func (s *failingCompStep) Execute(ctx context.Context) error {
	*s.log = append(*s.log, "exec:"+s.StepName)
	return nil
}

func (s *failingCompStep) Compensate(ctx context.Context) error {
	*s.log = append(*s.log, "comp:"+s.StepName)
	return errors.New("compensation failed")
}

func TestRun_CompensationFailureDoesNotStopRollback(t *testing.T) {
	var log []string
	err := Run(context.Background(),
		&recordedStep{BaseStep: BaseStep{StepName: "a"}, log: &log},
		&failingCompStep{BaseStep: BaseStep{StepName: "b"}, log: &log},
		&recordedStep{BaseStep: BaseStep{StepName: "c"}, log: &log, executeErr: errors.New("boom")},
	)
	if err == nil {
		t.Fatal("expected error")
	}

	want := []string{"exec:a", "exec:b", "exec:c", "comp:c", "comp:b", "comp:a"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], log[i])
		}
	}
}
