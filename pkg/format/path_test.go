package format

import (
	"os"
	"testing"
)

func TestLocationFullPath(t *testing.T) {
	sep := string(os.PathSeparator)
	tests := []struct {
		name string
		loc  Location
		want string
	}{
		{"no lib path", Location{FileName: "HG-U133A.CDF"}, "HG-U133A.CDF"},
		{"lib path", Location{LibPath: "lib", FileName: "HG-U133A.CDF"}, "lib" + sep + "HG-U133A.CDF"},
		{"trailing separator kept", Location{LibPath: "lib" + sep, FileName: "a.CEL"}, "lib" + sep + sep + "a.CEL"},
		{"dot segments kept", Location{LibPath: "lib" + sep + "..", FileName: "a.CEL"}, "lib" + sep + ".." + sep + "a.CEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.loc.FullPath(); got != tt.want {
				t.Errorf("FullPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocationSetFileName(t *testing.T) {
	sep := string(os.PathSeparator)
	var l Location
	l.SetFileName("arrays" + sep + "chip" + sep + "scan.CEL")
	if l.LibPath != "arrays"+sep+"chip" || l.FileName != "scan.CEL" {
		t.Fatalf("SetFileName split into %q, %q", l.LibPath, l.FileName)
	}
	if got := l.FullPath(); got != "arrays"+sep+"chip"+sep+"scan.CEL" {
		t.Errorf("FullPath() = %q", got)
	}
}
