package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "objrecord"

// Topics builds the MQTT topics used by objrecord under a common prefix.
//
//	topics := mqtt.NewTopics("objrecord")
//	topics.Record("widgets", "created")
//	// Returns: "objrecord/records/widgets/created"
type Topics struct {
	prefix string
}

// NewTopics returns a builder rooted at prefix. Surrounding slashes are
// trimmed; an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// Record returns the topic for a change of the given kind to a row of table.
//
// Example: objrecord/records/widgets/updated
func (t Topics) Record(table, kind string) string {
	return fmt.Sprintf("%s/records/%s/%s", t.Prefix(), sanitizeLevel(table), sanitizeLevel(kind))
}

// TableRecords returns a pattern matching every change to table.
//
// Pattern: objrecord/records/widgets/+
func (t Topics) TableRecords(table string) string {
	return fmt.Sprintf("%s/records/%s/+", t.Prefix(), sanitizeLevel(table))
}

// AllRecords returns a pattern matching every record change.
//
// Pattern: objrecord/records/#
func (t Topics) AllRecords() string {
	return t.Prefix() + "/records/#"
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: objrecord/system/status
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}

// sanitizeLevel keeps a name within a single topic level. Wildcards and
// separators would otherwise change which subscriptions match.
func sanitizeLevel(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
