package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/barscan/internal/barcode"
)

// FileResult is the outcome of decoding one image file.
type FileResult struct {
	File    string          `json:"file"              yaml:"file"`
	Outcome string          `json:"outcome"           yaml:"outcome"`
	Display string          `json:"display,omitempty" yaml:"display,omitempty"`
	Format  string          `json:"format,omitempty"  yaml:"format,omitempty"`
	Content string          `json:"content,omitempty" yaml:"content,omitempty"`
	Text    string          `json:"text,omitempty"    yaml:"text,omitempty"`
	Points  []barcode.Point `json:"points,omitempty"  yaml:"points,omitempty"`
	Overlay string          `json:"overlay,omitempty" yaml:"overlay,omitempty"`
	Error   string          `json:"error,omitempty"   yaml:"error,omitempty"`
}

type fileList struct {
	Files []FileResult `json:"files" yaml:"files"`
}

// FormatFileResults renders per-file results in the requested format.
func FormatFileResults(rs []FileResult, format string) (string, error) {
	if rs == nil {
		rs = []FileResult{}
	}
	switch format {
	case FormatJSON:
		bts, err := json.MarshalIndent(fileList{Files: rs}, "", "  ")
		return string(bts), err
	case FormatYAML:
		bts, err := yaml.Marshal(fileList{Files: rs})
		return string(bts), err
	case FormatCSV:
		return fileResultsCSV(rs)
	case FormatText, "":
		return fileResultsText(rs), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

func fileResultsCSV(rs []FileResult) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{"file", "outcome", "format", "content", "text", "error"}); err != nil {
		return "", err
	}
	for _, r := range rs {
		if err := writer.Write([]string{r.File, r.Outcome, r.Format, r.Content, r.Text, r.Error}); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

func fileResultsText(rs []FileResult) string {
	var output strings.Builder
	for _, r := range rs {
		switch {
		case r.Error != "" && r.Display == "":
			fmt.Fprintf(&output, "%s: error: %s\n", r.File, r.Error)
		case r.Display != "":
			fmt.Fprintf(&output, "%s: %s\n", r.File, r.Display)
		default:
			fmt.Fprintf(&output, "%s: no barcode found\n", r.File)
		}
	}
	return output.String()
}
