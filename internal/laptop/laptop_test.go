package laptop

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/smazurov/rogd/internal/codec"
)

func writeDMI(t *testing.T, board, family string) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"board_name":     board + "\n",
		"product_family": family + "\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestReadDMI(t *testing.T) {
	root := writeDMI(t, "GX502GW", "ROG Zephyrus S")
	dmi, err := ReadDMI(root)
	if err != nil {
		t.Fatalf("ReadDMI() error = %v", err)
	}
	if dmi.BoardName != "GX502GW" || dmi.ProductFamily != "ROG Zephyrus S" {
		t.Errorf("ReadDMI() = %+v", dmi)
	}

	if _, err := ReadDMI(t.TempDir()); err == nil {
		t.Error("ReadDMI() on empty root succeeded")
	}
}

func TestParseSupportTable(t *testing.T) {
	data := []byte(`
[[led_data]]
prod_family = "Strix"
board_names = ["G512"]
standard = ["static", 1, "Rainbow", "MultiStatic"]
multizone = true
per_key = false
`)
	table, err := ParseSupportTable(data)
	if err != nil {
		t.Fatalf("ParseSupportTable() error = %v", err)
	}
	want := []codec.ModeID{codec.ModeStatic, codec.ModeBreathe, codec.ModeRainbow, codec.ModeMultiStatic}
	if got := table.LedData[0].Standard; !reflect.DeepEqual(got, want) {
		t.Errorf("Standard = %v, want %v", got, want)
	}
}

func TestParseSupportTable_Errors(t *testing.T) {
	tests := map[string]string{
		"syntax":       `[[led_data]`,
		"unknown name": "[[led_data]]\nstandard = [\"sparkle\"]\n",
		"unknown id":   "[[led_data]]\nstandard = [9]\n",
		"wrong type":   "[[led_data]]\nstandard = [true]\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseSupportTable([]byte(data)); !errors.Is(err, ErrBadTable) {
				t.Errorf("error = %v, want ErrBadTable", err)
			}
		})
	}
}

func TestBuiltinTableParses(t *testing.T) {
	table, err := ParseSupportTable(defaultTable)
	if err != nil {
		t.Fatalf("built-in table: %v", err)
	}
	if len(table.LedData) == 0 {
		t.Error("built-in table is empty")
	}
}

func TestModes(t *testing.T) {
	tests := []struct {
		name string
		data LedData
		want codec.ModeSet
	}{
		{
			name: "standard only",
			data: LedData{Standard: []codec.ModeID{codec.ModeStatic, codec.ModePulse}},
			want: codec.ModeSet{codec.ModeStatic, codec.ModePulse},
		},
		{
			name: "multizone and per-key",
			data: LedData{Standard: []codec.ModeID{codec.ModeStatic}, Multizone: true, PerKey: true},
			want: codec.ModeSet{codec.ModeStatic, codec.ModeMultiStatic, codec.ModePerKey},
		},
		{
			name: "duplicates collapse",
			data: LedData{Standard: []codec.ModeID{codec.ModeStatic, codec.ModeStatic, codec.ModeMultiStatic}, Multizone: true},
			want: codec.ModeSet{codec.ModeStatic, codec.ModeMultiStatic},
		},
		{
			name: "none",
			data: LedData{},
			want: codec.ModeSet{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.data.Modes(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Modes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	table := SupportTable{LedData: []LedData{
		{ProdFamily: "ROG Strix", BoardNames: []string{"G512LI"}},
		{ProdFamily: "ROG Strix", BoardNames: []string{"G512"}, Multizone: true},
	}}

	tests := []struct {
		dmi       DMI
		ok        bool
		multizone bool
	}{
		{DMI{BoardName: "G512LI", ProductFamily: "ROG Strix G"}, true, false},
		{DMI{BoardName: "G512LV", ProductFamily: "ROG Strix G"}, true, true},
		{DMI{BoardName: "G512LV", ProductFamily: "TUF Gaming"}, false, false},
	}
	for _, tt := range tests {
		got, ok := table.Match(tt.dmi)
		if ok != tt.ok || got.Multizone != tt.multizone {
			t.Errorf("Match(%+v) = %+v, %v", tt.dmi, got, ok)
		}
	}
}

func TestDetect(t *testing.T) {
	tablePath := filepath.Join(t.TempDir(), "asusd-ledmodes.toml")
	table := `
[[led_data]]
prod_family = "Zephyrus S"
board_names = ["GX502"]
standard = ["static", "breathe"]
multizone = false
per_key = true
`
	if err := os.WriteFile(tablePath, []byte(table), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Detect(writeDMI(t, "GX502GW", "ROG Zephyrus S"), tablePath)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	want := codec.ModeSet{codec.ModeStatic, codec.ModeBreathe, codec.ModePerKey}
	if !l.Matched || !reflect.DeepEqual(l.Modes(), want) {
		t.Errorf("Detect() = %+v", l)
	}

	l, err = Detect(writeDMI(t, "X509", "VivoBook"), tablePath)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if l.Matched || len(l.Modes()) != 0 {
		t.Errorf("unknown board should be brightness only: %+v", l)
	}
}

func TestLoadSupportTable_Fallback(t *testing.T) {
	dir := t.TempDir()

	missing, err := LoadSupportTable(filepath.Join(dir, "absent.toml"))
	if err != nil || len(missing.LedData) == 0 {
		t.Errorf("missing file: %v, %d entries", err, len(missing.LedData))
	}

	empty := filepath.Join(dir, "empty.toml")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if table, err := LoadSupportTable(empty); err != nil || len(table.LedData) == 0 {
		t.Errorf("empty file: %v, %d entries", err, len(table.LedData))
	}
}
