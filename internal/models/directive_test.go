package models

import "testing"

func TestDecodeDirective(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *int
		wantErr bool
	}{
		{"refresh time", `{"refreshTime": 60}`, intPtr(60), false},
		{"pascal case key", `{"RefreshTime": 60}`, intPtr(60), false},
		{"lower case key", `{"refreshtime": 60}`, intPtr(60), false},
		{"exact key preferred", `{"RefreshTime": 10, "refreshTime": 60}`, intPtr(60), false},
		{"float with integral value", `{"refreshTime": 120.0}`, intPtr(120), false},
		{"exponent", `{"refreshTime": 3e2}`, intPtr(300), false},
		{"zero kept for caller", `{"refreshTime": 0}`, intPtr(0), false},
		{"negative kept for caller", `{"refreshTime": -5}`, intPtr(-5), false},
		{"fractional", `{"refreshTime": 1.5}`, nil, false},
		{"quoted number", `{"refreshTime": "60"}`, nil, false},
		{"null", `{"refreshTime": null}`, nil, false},
		{"bool", `{"refreshTime": true}`, nil, false},
		{"object", `{"refreshTime": {"s": 1}}`, nil, false},
		{"too large", `{"refreshTime": 99999999999}`, nil, false},
		{"absent", `{"status": "ok"}`, nil, false},
		{"empty body", ``, nil, false},
		{"whitespace body", "  \n", nil, false},
		{"json array", `[1, 2]`, nil, false},
		{"json null", `null`, nil, false},
		{"json string", `"ok"`, nil, false},
		{"not json", `<html>bad gateway</html>`, nil, true},
		{"truncated", `{"refreshTime": 6`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := DecodeDirective([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeDirective(%q) error = %v, wantErr %v", tt.body, err, tt.wantErr)
			}
			switch {
			case tt.want == nil && d.RefreshTimeSeconds != nil:
				t.Errorf("RefreshTimeSeconds = %d, want nil", *d.RefreshTimeSeconds)
			case tt.want != nil && d.RefreshTimeSeconds == nil:
				t.Errorf("RefreshTimeSeconds = nil, want %d", *tt.want)
			case tt.want != nil && *d.RefreshTimeSeconds != *tt.want:
				t.Errorf("RefreshTimeSeconds = %d, want %d", *d.RefreshTimeSeconds, *tt.want)
			}
		})
	}
}

func TestDecodeDirective_KeepsExtraFields(t *testing.T) {
	d, err := DecodeDirective([]byte(`{"refreshTime": 45, "faces": 2, "message": "hi"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !d.HasRefreshTime() {
		t.Fatal("expected a refresh time")
	}
	if _, ok := d.Extra["refreshTime"]; ok {
		t.Error("refreshTime should not be repeated in Extra")
	}
	if string(d.Extra["faces"]) != "2" {
		t.Errorf("Extra[faces] = %s, want 2", d.Extra["faces"])
	}
}

func TestDirectiveHasRefreshTime(t *testing.T) {
	if (Directive{}).HasRefreshTime() {
		t.Error("empty directive should not have a refresh time")
	}
	if (Directive{RefreshTimeSeconds: intPtr(0)}).HasRefreshTime() {
		t.Error("zero refresh time should not count")
	}
	if !(Directive{RefreshTimeSeconds: intPtr(10)}).HasRefreshTime() {
		t.Error("positive refresh time should count")
	}
}

func intPtr(v int) *int { return &v }

func TestDecodeDirective_CaseInsensitiveKeyNotInExtra(t *testing.T) {
	d, err := DecodeDirective([]byte(`{"RefreshTime": 90, "faces": 1}`))
	if err != nil {
		t.Fatal(err)
	}
	if !d.HasRefreshTime() || *d.RefreshTimeSeconds != 90 {
		t.Fatalf("RefreshTimeSeconds = %v, want 90", d.RefreshTimeSeconds)
	}
	if _, ok := d.Extra["RefreshTime"]; ok {
		t.Error("RefreshTime should not be repeated in Extra")
	}
	if _, ok := d.Extra["faces"]; !ok {
		t.Error("faces should be kept in Extra")
	}
}
