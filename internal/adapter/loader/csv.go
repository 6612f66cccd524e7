package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// extractCSV renders rows as "header: value" lines so each record reads
// as a self-contained statement after splitting.
func extractCSV(data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read csv header: %w", err)
	}

	var builder strings.Builder
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read csv record: %w", err)
		}
		var fields []string
		for i, value := range record {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				fields = append(fields, fmt.Sprintf("%s: %s", strings.TrimSpace(header[i]), value))
			} else {
				fields = append(fields, value)
			}
		}
		if len(fields) == 0 {
			continue
		}
		builder.WriteString(strings.Join(fields, ", "))
		builder.WriteString("\n\n")
	}
	return builder.String(), nil
}
