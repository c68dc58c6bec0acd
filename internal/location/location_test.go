package location

import "testing"

func TestRecordPackageBaseName(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"empty", "", ""},
		{"bare name", "main.go", "main.go"},
		{"unix path", "/usr/src/app/internal/writer/writer.go", "writer.go"},
		{"windows path", `C:\src\app\internal\writer\writer.go`, "writer.go"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Record{Filename: tt.filename}.PackageBaseName()
			if got != tt.want {
				t.Errorf("PackageBaseName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
