package laptop

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/logging"
)

// SupportTablePath is the editable LED support table.
const SupportTablePath = "/etc/asusd/asusd-ledmodes.toml"

// KeyboardProductIDs are the USB product ids of the RGB keyboard controllers.
var KeyboardProductIDs = []string{"1866", "1869", "1854", "19b6"}

//go:embed ledmodes.toml
var defaultTable []byte

// ErrBadTable is returned when the support table cannot be parsed.
var ErrBadTable = errors.New("invalid LED support table")

// LedData describes the keyboard LED capabilities of a family of boards.
type LedData struct {
	ProdFamily string         `json:"prod_family"`
	BoardNames []string       `json:"board_names"`
	Standard   []codec.ModeID `json:"standard"`
	Multizone  bool           `json:"multizone"`
	PerKey     bool           `json:"per_key"`
}

// Modes derives the supported mode set: the standard modes, then
// MultiStatic and PerKey when the board has them.
func (d LedData) Modes() codec.ModeSet {
	modes := make(codec.ModeSet, 0, len(d.Standard)+2)
	for _, m := range d.Standard {
		if !modes.Contains(m) {
			modes = append(modes, m)
		}
	}
	if d.Multizone && !modes.Contains(codec.ModeMultiStatic) {
		modes = append(modes, codec.ModeMultiStatic)
	}
	if d.PerKey && !modes.Contains(codec.ModePerKey) {
		modes = append(modes, codec.ModePerKey)
	}
	return modes
}

// SupportTable is the list of known boards.
type SupportTable struct {
	LedData []LedData `json:"led_data"`
}

type rawLedData struct {
	ProdFamily string   `toml:"prod_family"`
	BoardNames []string `toml:"board_names"`
	Standard   []any    `toml:"standard"`
	Multizone  bool     `toml:"multizone"`
	PerKey     bool     `toml:"per_key"`
}

// ParseSupportTable decodes a support table. Modes may be given by name
// ("static", "MultiStatic") or by numeric id.
func ParseSupportTable(data []byte) (SupportTable, error) {
	var raw struct {
		LedData []rawLedData `toml:"led_data"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return SupportTable{}, fmt.Errorf("%w: %w", ErrBadTable, err)
	}

	table := SupportTable{LedData: make([]LedData, 0, len(raw.LedData))}
	for i, r := range raw.LedData {
		entry := LedData{
			ProdFamily: r.ProdFamily,
			BoardNames: r.BoardNames,
			Multizone:  r.Multizone,
			PerKey:     r.PerKey,
		}
		for _, v := range r.Standard {
			id, err := parseModeValue(v)
			if err != nil {
				return SupportTable{}, fmt.Errorf("%w: led_data[%d]: %w", ErrBadTable, i, err)
			}
			entry.Standard = append(entry.Standard, id)
		}
		table.LedData = append(table.LedData, entry)
	}
	return table, nil
}

func parseModeValue(v any) (codec.ModeID, error) {
	switch val := v.(type) {
	case int64:
		id := codec.ModeID(val)
		if val < 0 || val > 0xff || !id.Known() {
			return 0, fmt.Errorf("%w: %d", codec.ErrUnknownMode, val)
		}
		return id, nil
	case string:
		if id, err := codec.ParseMode(val); err == nil {
			return id, nil
		}
		squashed := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(val))
		for _, id := range allModes {
			if strings.ReplaceAll(id.String(), "-", "") == squashed {
				return id, nil
			}
		}
		return 0, fmt.Errorf("%w: %q", codec.ErrUnknownMode, val)
	default:
		return 0, fmt.Errorf("%w: %v", codec.ErrUnknownMode, v)
	}
}

var allModes = codec.ModeSet{
	codec.ModeStatic, codec.ModeBreathe, codec.ModeStrobe, codec.ModeRainbow,
	codec.ModeStar, codec.ModeRain, codec.ModeHighlight, codec.ModeLaser,
	codec.ModeRipple, codec.ModePulse, codec.ModeComet, codec.ModeFlash,
	codec.ModeMultiStatic, codec.ModePerKey,
}

// LoadSupportTable reads the table at path. A missing or empty file falls
// back to the built-in table.
func LoadSupportTable(path string) (SupportTable, error) {
	logger := logging.GetLogger("laptop")

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logger.Warn("LED support table not found, using built-in table", "path", path)
		return ParseSupportTable(defaultTable)
	case err != nil:
		return SupportTable{}, fmt.Errorf("failed to read %s: %w", path, err)
	case len(data) == 0:
		logger.Warn("LED support table is empty, using built-in table", "path", path)
		return ParseSupportTable(defaultTable)
	}
	return ParseSupportTable(data)
}

// Match returns the first entry whose prod_family is contained in the DMI
// product family and one of whose board names is contained in the board name.
func (t SupportTable) Match(dmi DMI) (LedData, bool) {
	for _, entry := range t.LedData {
		if !strings.Contains(dmi.ProductFamily, entry.ProdFamily) {
			continue
		}
		for _, board := range entry.BoardNames {
			if strings.Contains(dmi.BoardName, board) {
				return entry, true
			}
		}
	}
	return LedData{}, false
}

// Laptop is everything detected about the running machine.
type Laptop struct {
	DMI     DMI     `json:"dmi"`
	LedData LedData `json:"led_data"`
	Matched bool    `json:"matched"`
}

// Detect reads DMI data under dmiRoot and matches it against the table at
// tablePath. An unmatched board gets brightness-only control: no modes.
func Detect(dmiRoot, tablePath string) (Laptop, error) {
	logger := logging.GetLogger("laptop")

	dmi, err := ReadDMI(dmiRoot)
	if err != nil {
		return Laptop{}, err
	}
	logger.Info("Board detected", "product_family", dmi.ProductFamily, "board_name", dmi.BoardName)

	table, err := LoadSupportTable(tablePath)
	if err != nil {
		return Laptop{}, err
	}

	if data, ok := table.Match(dmi); ok {
		logger.Info("Matched LED support entry", "prod_family", data.ProdFamily, "modes", len(data.Modes()))
		return Laptop{DMI: dmi, LedData: data, Matched: true}, nil
	}

	logger.Info("Using generic LED control for keyboard brightness only")
	return Laptop{
		DMI: dmi,
		LedData: LedData{
			ProdFamily: dmi.ProductFamily,
			BoardNames: []string{dmi.BoardName},
		},
	}, nil
}

// Modes is shorthand for l.LedData.Modes().
func (l Laptop) Modes() codec.ModeSet {
	return l.LedData.Modes()
}
