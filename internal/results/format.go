package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats understood by FormatEntries.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// ValidFormat reports whether format is supported by FormatEntries.
func ValidFormat(format string) bool {
	switch format {
	case FormatText, FormatJSON, FormatYAML, FormatCSV:
		return true
	default:
		return false
	}
}

// FormatEntries renders entries in the requested format.
func FormatEntries(entries []Entry, format string) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(entries)
	case FormatYAML:
		return formatYAML(entries)
	case FormatCSV:
		return formatCSV(entries)
	case FormatText, "":
		return formatText(entries), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

type entryList struct {
	Results []Entry `json:"results" yaml:"results"`
}

func formatJSON(entries []Entry) (string, error) {
	if entries == nil {
		entries = []Entry{}
	}
	bts, err := json.MarshalIndent(entryList{Results: entries}, "", "  ")
	return string(bts), err
}

func formatYAML(entries []Entry) (string, error) {
	if entries == nil {
		entries = []Entry{}
	}
	bts, err := yaml.Marshal(entryList{Results: entries})
	return string(bts), err
}

func formatCSV(entries []Entry) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{"seq", "time", "count", "text"}); err != nil {
		return "", err
	}
	for _, e := range entries {
		row := []string{strconv.Itoa(e.Seq), e.Time.Format(time.RFC3339Nano), strconv.Itoa(e.Count), e.Text}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

// formatText prints one line per entry; repeats carry their count.
func formatText(entries []Entry) string {
	var output strings.Builder
	for _, e := range entries {
		if e.Count > 1 {
			fmt.Fprintf(&output, "%s (x%d)\n", e.Text, e.Count)
			continue
		}
		output.WriteString(e.Text)
		output.WriteString("\n")
	}
	return output.String()
}
