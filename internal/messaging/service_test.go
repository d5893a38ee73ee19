package messaging

import "testing"

func TestCanonicalizePhone(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"919876543210", "919876543210", false},
		{"+91 98765 43210", "919876543210", false},
		{"whatsapp:+919876543210", "919876543210", false},
		{"(91) 98765-43210", "919876543210", false},
		{"", "", true},
		{"abc", "", true},
		{"12345", "", true}, // too short
	}
	for _, tc := range tests {
		got, err := canonicalizePhone(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("canonicalizePhone(%q) = %q, want error", tc.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("canonicalizePhone(%q) unexpected error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("canonicalizePhone(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
