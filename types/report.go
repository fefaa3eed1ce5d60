package types

// ReportLevel grades the severity of a report entry.
type ReportLevel string

const (
	// LevelNotice marks informational entries.
	LevelNotice ReportLevel = "notice"
	// LevelWarning marks entries that need review but did not stop
	// processing of the item.
	LevelWarning ReportLevel = "warning"
	// LevelError marks entries where the item could not be processed.
	LevelError ReportLevel = "error"
)

// ReportEntry is one structured diagnostic record produced while
// processing a chunk. Entries have no identity beyond their insertion
// order within one reporter's buffer.
type ReportEntry struct {
	// Message is the diagnostic text.
	Message string `msgpack:"message" json:"message"`
	// Item is the originating input item, when the entry is keyed to
	// one. Nil for free-form entries.
	Item any `msgpack:"item,omitempty" json:"item,omitempty"`
	// Level is the entry severity.
	Level ReportLevel `msgpack:"level" json:"level"`
}
