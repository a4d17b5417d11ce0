package clients

import "testing"

func TestValidNHSNumber(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"9434765919", true},
		{"9434765870", true},
		{"9434765918", false},
		{"943476591", false},
		{"94347659190", false},
		{"94347659A9", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidNHSNumber(tt.in); got != tt.want {
			t.Errorf("ValidNHSNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeNHSNumber(t *testing.T) {
	in := "943 476-5919"
	got := NormalizeNHSNumber(&in)
	if got == nil || *got != "9434765919" {
		t.Errorf("unexpected %v", got)
	}
	blank := " - "
	if NormalizeNHSNumber(&blank) != nil {
		t.Error("blank number should normalize to nil")
	}
	if NormalizeNHSNumber(nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestClient_DisplayName(t *testing.T) {
	c := &Client{FirstName: "Margaret", LastName: "Hughes"}
	if c.DisplayName() != "Margaret Hughes" {
		t.Errorf("unexpected %q", c.DisplayName())
	}
	c.PreferredName = "Peggy"
	if c.DisplayName() != "Peggy Hughes" {
		t.Errorf("unexpected %q", c.DisplayName())
	}
}
