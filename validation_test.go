package sluice_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/zoobzio/sluice"
)

func validationErrors(t *testing.T, err error) sluice.ValidationErrors {
	t.Helper()
	var verrs sluice.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Expected ValidationErrors, got %T: %v", err, err)
	}
	return verrs
}

func TestValidateSchemaValid(t *testing.T) {
	factory := testFactory()

	err := factory.ValidateSchema(sluice.Schema{
		Stages: []sluice.StageNode{
			{Apply: "double", Attempts: 3, Backoff: "100ms", Timeout: "5s"},
			{Filter: "is-high"},
			{Sorted: "by-value"},
			{Recover: "zeroed"},
			{Bridge: "parallel", Workers: 8},
		},
	})
	if err != nil {
		t.Fatalf("Expected valid schema, got %v", err)
	}
}

func TestValidateSchemaEmptyStages(t *testing.T) {
	factory := testFactory()

	err := factory.ValidateSchema(sluice.Schema{})
	verrs := validationErrors(t, err)
	if len(verrs) != 1 {
		t.Fatalf("Expected 1 error, got %v", verrs)
	}
	if verrs[0].Error() != "stages: schema requires at least one stage" {
		t.Errorf("Unexpected error text: %s", verrs[0].Error())
	}
}

func TestValidateSchemaCollectsAllErrors(t *testing.T) {
	factory := testFactory()

	err := factory.ValidateSchema(sluice.Schema{
		Stages: []sluice.StageNode{
			{Apply: "missing"},
			{Filter: "also-missing"},
			{},
		},
	})
	verrs := validationErrors(t, err)
	if len(verrs) != 3 {
		t.Fatalf("Expected 3 errors, got %v", verrs)
	}
	if !strings.HasPrefix(verrs[0].Error(), "stages[0]") {
		t.Errorf("Expected path prefix stages[0], got %s", verrs[0].Error())
	}
	if !strings.HasPrefix(verrs[2].Error(), "stages[2]") {
		t.Errorf("Expected path prefix stages[2], got %s", verrs[2].Error())
	}
	if !strings.Contains(err.Error(), "3 validation errors") {
		t.Errorf("Expected aggregated message, got %s", err.Error())
	}
}

func TestValidateSchemaExactlyOneKind(t *testing.T) {
	factory := testFactory()

	err := factory.ValidateSchema(sluice.Schema{
		Stages: []sluice.StageNode{
			{Apply: "double", Filter: "is-high"},
		},
	})
	verrs := validationErrors(t, err)
	if len(verrs) != 1 {
		t.Fatalf("Expected 1 error, got %v", verrs)
	}
	if !strings.Contains(verrs[0].Message, "exactly one of") {
		t.Errorf("Unexpected message: %s", verrs[0].Message)
	}
}

func TestValidateSchemaApplyOptions(t *testing.T) {
	factory := testFactory()

	cases := []struct {
		name string
		node sluice.StageNode
		want string
	}{
		{
			name: "backoff without attempts",
			node: sluice.StageNode{Apply: "double", Backoff: "1s"},
			want: "backoff requires attempts",
		},
		{
			name: "negative attempts",
			node: sluice.StageNode{Apply: "double", Attempts: -1},
			want: "attempts must not be negative",
		},
		{
			name: "bad backoff duration",
			node: sluice.StageNode{Apply: "double", Attempts: 2, Backoff: "soon"},
			want: "invalid duration 'soon'",
		},
		{
			name: "bad timeout duration",
			node: sluice.StageNode{Apply: "double", Timeout: "whenever"},
			want: "invalid duration 'whenever'",
		},
		{
			name: "workers on apply",
			node: sluice.StageNode{Apply: "double", Workers: 4},
			want: "workers applies only to bridge stages",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := factory.ValidateSchema(sluice.Schema{Stages: []sluice.StageNode{tc.node}})
			verrs := validationErrors(t, err)
			found := false
			for _, ve := range verrs {
				if strings.Contains(ve.Message, tc.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected error containing %q, got %v", tc.want, verrs)
			}
		})
	}
}

func TestValidateSchemaOptionsOnWrongKinds(t *testing.T) {
	factory := testFactory()

	t.Run("retry options on filter", func(t *testing.T) {
		err := factory.ValidateSchema(sluice.Schema{
			Stages: []sluice.StageNode{{Filter: "is-high", Attempts: 2}},
		})
		verrs := validationErrors(t, err)
		if len(verrs) != 1 || !strings.Contains(verrs[0].Message, "apply only to apply stages") {
			t.Errorf("Unexpected errors: %v", verrs)
		}
	})

	t.Run("workers on sequential bridge", func(t *testing.T) {
		err := factory.ValidateSchema(sluice.Schema{
			Stages: []sluice.StageNode{{Bridge: "sequential", Workers: 3}},
		})
		verrs := validationErrors(t, err)
		if len(verrs) != 1 || !strings.Contains(verrs[0].Message, "workers applies only to parallel bridges") {
			t.Errorf("Unexpected errors: %v", verrs)
		}
	})

	t.Run("unknown bridge strategy", func(t *testing.T) {
		err := factory.ValidateSchema(sluice.Schema{
			Stages: []sluice.StageNode{{Bridge: "diagonal"}},
		})
		verrs := validationErrors(t, err)
		if len(verrs) != 1 || !strings.Contains(verrs[0].Message, "unknown strategy 'diagonal'") {
			t.Errorf("Unexpected errors: %v", verrs)
		}
	})

	t.Run("unknown named stage", func(t *testing.T) {
		err := factory.ValidateSchema(sluice.Schema{
			Stages: []sluice.StageNode{{Stage: "missing"}},
		})
		verrs := validationErrors(t, err)
		if len(verrs) != 1 || !strings.Contains(verrs[0].Message, "stage 'missing' not found") {
			t.Errorf("Unexpected errors: %v", verrs)
		}
	})
}
