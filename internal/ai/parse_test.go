package ai

import (
	"testing"
)

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		name          string
		input         string
		wantErr       bool
		wantHasDamage bool
		wantSeverity  string
	}{
		{
			name:          "plain json",
			input:         `{"hasDamage": true, "severity": "severe", "description": "deep scratch", "location": "left door", "suggestions": ["repaint panel"]}`,
			wantHasDamage: true,
			wantSeverity:  "severe",
		},
		{
			name:          "fenced json",
			input:         "```json\n{\"hasDamage\": false, \"severity\": \"minor\", \"description\": \"clean panel\"}\n```",
			wantHasDamage: false,
			wantSeverity:  "minor",
		},
		{
			name:          "json with prose around it",
			input:         "Here is my assessment:\n{\"hasDamage\": true, \"severity\": \"moderate\", \"description\": \"dent\"}\nLet me know if you need more.",
			wantHasDamage: true,
			wantSeverity:  "moderate",
		},
		{
			name:          "unknown severity normalized",
			input:         `{"hasDamage": true, "severity": "catastrophic", "description": "bumper missing"}`,
			wantHasDamage: true,
			wantSeverity:  "minor",
		},
		{
			name:          "braces inside strings",
			input:         `{"hasDamage": true, "severity": "minor", "description": "sticker reading {fragile} on window"}`,
			wantHasDamage: true,
			wantSeverity:  "minor",
		},
		{
			name:    "no json at all",
			input:   "I cannot analyze this image.",
			wantErr: true,
		},
		{
			name:    "unbalanced json",
			input:   `{"hasDamage": true, "severity":`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict, err := ParseVerdict(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVerdict: %v", err)
			}
			if verdict.HasDamage != tc.wantHasDamage {
				t.Errorf("HasDamage = %v, want %v", verdict.HasDamage, tc.wantHasDamage)
			}
			if verdict.Severity != tc.wantSeverity {
				t.Errorf("Severity = %q, want %q", verdict.Severity, tc.wantSeverity)
			}
		})
	}
}
