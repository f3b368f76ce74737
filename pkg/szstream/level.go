// pkg/szstream/level.go
package szstream

import "fmt"

// Level is a compression level preset. The numeric values match the
// 0-9 scale of the CLI (--level) and the archive header byte.
type Level uint8

const (
	LevelStore   Level = 0 // no compression, raw chunks
	LevelFastest Level = 1
	LevelFast    Level = 3
	LevelNormal  Level = 5
	LevelMaximum Level = 7
	LevelUltra   Level = 9
)

// LevelFromInt maps a 0-9 CLI value onto the nearest preset.
func LevelFromInt(n int) (Level, error) {
	switch {
	case n == 0:
		return LevelStore, nil
	case n <= 2:
		return LevelFastest, nil
	case n <= 4:
		return LevelFast, nil
	case n <= 6:
		return LevelNormal, nil
	case n <= 8:
		return LevelMaximum, nil
	case n == 9:
		return LevelUltra, nil
	default:
		return 0, fmt.Errorf("%w: compression level must be 0-9, got %d", ErrInvalidParameter, n)
	}
}

func (l Level) String() string {
	switch l {
	case LevelStore:
		return "store"
	case LevelFastest:
		return "fastest"
	case LevelFast:
		return "fast"
	case LevelNormal:
		return "normal"
	case LevelMaximum:
		return "maximum"
	case LevelUltra:
		return "ultra"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// Valid reports whether l is one of the defined presets.
func (l Level) Valid() bool {
	switch l {
	case LevelStore, LevelFastest, LevelFast, LevelNormal, LevelMaximum, LevelUltra:
		return true
	}
	return false
}
