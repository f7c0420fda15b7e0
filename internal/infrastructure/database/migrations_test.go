package database

import "testing"

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{
			name:        "valid up migration",
			filename:    "20260801_120000_create_labels.up.sql",
			wantVersion: "20260801_120000",
			wantUp:      true,
			wantOK:      true,
		},
		{
			name:        "valid down migration",
			filename:    "20260801_120000_create_labels.down.sql",
			wantVersion: "20260801_120000",
			wantUp:      false,
			wantOK:      true,
		},
		{
			name:     "not a sql file",
			filename: "embed.go",
			wantOK:   false,
		},
		{
			name:     "missing direction suffix",
			filename: "20260801_120000_create_labels.sql",
			wantOK:   false,
		},
		{
			name:     "missing version parts",
			filename: "notaversion.up.sql",
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("parseMigrationFilename(%q) ok = %v, want %v", tt.filename, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if isUp != tt.wantUp {
				t.Errorf("isUp = %v, want %v", isUp, tt.wantUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260801_120000_create_labels.up.sql", "create_labels"},
		{"20260801_120000_create_labels.down.sql", "create_labels"},
		{"short.up.sql", "short"},
	}

	for _, tt := range tests {
		if got := extractMigrationName(tt.filename); got != tt.want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
