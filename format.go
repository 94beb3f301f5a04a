package storagecheck

import (
	"fmt"
)

// Level is the severity of a formatted diff.
type Level string

const (
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Level returns the severity of a diff type. Only renames are warnings.
func (t DiffType) Level() Level {
	if t == DiffLabel {
		return LevelWarning
	}
	return LevelError
}

// Title returns a short human-readable title for a diff type.
func (t DiffType) Title() string {
	switch t {
	case DiffLabel:
		return "Label diff"
	case DiffVariable:
		return "Variable diff"
	case DiffVariableType:
		return "Variable type diff"
	case DiffVariableRemoved:
		return "Variable removal"
	case DiffNonZeroAddedSlot:
		return "Non-zero added slot"
	default:
		return "Storage layout diff"
	}
}

// SourcePosition is a position in a source file. Lines start at 1, columns at 0.
type SourcePosition struct {
	Line   int
	Column int
}

// SourceRange is a range of text in a source file.
type SourceRange struct {
	Start SourcePosition
	End   SourcePosition
}

// SourceLocator finds where a variable is declared in the candidate source.
type SourceLocator interface {
	Locate(label string) (SourceRange, bool)
}

// FormattedDiff is a diff rendered for humans.
type FormattedDiff struct {
	Type    DiffType
	Level   Level
	Title   string
	Message string

	// Range is zero when the variable could not be located.
	Range SourceRange
}

// FormatLocation renders the storage location of a diff.
func FormatLocation(diff StorageLayoutDiff) string {
	if diff.Parent != "" {
		return fmt.Sprintf("%s slot #%s, byte #%d", diff.Parent, diff.Location.Slot.Text(10), diff.Location.Offset)
	}
	return fmt.Sprintf("storage slot 0x%064x, byte #%d", diff.Location.Slot, diff.Location.Offset)
}

// FormatDiff renders a diff into a message and, when locator is non-nil and
// the diff carries a candidate variable, the source range declaring it.
func FormatDiff(diff StorageLayoutDiff, locator SourceLocator) FormattedDiff {
	formatted := FormattedDiff{
		Type:    diff.Type,
		Level:   diff.Type.Level(),
		Title:   diff.Type.Title(),
		Message: formatMessage(diff),
	}

	if locator != nil && diff.Cmp != nil {
		if r, ok := locator.Locate(diff.Cmp.Label); ok {
			formatted.Range = r
		}
	}

	return formatted
}

func formatMessage(diff StorageLayoutDiff) string {
	location := FormatLocation(diff)
	src, cmp := diff.Src, diff.Cmp

	switch diff.Type {
	case DiffLabel:
		return fmt.Sprintf(`variable "%s" was renamed to "%s". Is it intentional? (%s)`,
			src.FullLabel, cmp.FullLabel, location)
	case DiffVariableType:
		return fmt.Sprintf(`variable "%s" was of type "%s" but is now "%s" (%s)`,
			src.FullLabel, src.TypeLabel, cmp.TypeLabel, location)
	case DiffVariableRemoved:
		return fmt.Sprintf(`variable "%s" of type "%s" was removed (%s)`,
			src.FullLabel, src.TypeLabel, location)
	case DiffVariable:
		return fmt.Sprintf(`variable "%s" of type "%s" was replaced by variable "%s" of type "%s" (%s)`,
			src.FullLabel, src.TypeLabel, cmp.FullLabel, cmp.TypeLabel, location)
	case DiffNonZeroAddedSlot:
		return fmt.Sprintf(`variable "%s" of type "%s" was added at a non-zero storage byte (%s: 0x%02x)`,
			cmp.FullLabel, cmp.TypeLabel, location, diff.Value)
	default:
		return "Storage layout diff"
	}
}
