// Package catalogfile reads diagnosis labels for catalog seeding from YAML or XLSX files.
package catalogfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Load reads labels from path, choosing the format by extension.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".xlsx":
		return ParseXLSX(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported catalog file %q (want .yaml, .yml or .xlsx)", filepath.Base(path))
	}
}

// ParseYAML expects {diagnosticos: [label, ...]}.
func ParseYAML(data []byte) ([]string, error) {
	var file struct {
		Diagnosticos []string `yaml:"diagnosticos"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	return cleanLabels(file.Diagnosticos), nil
}

// ParseXLSX reads the first column of the first sheet. A header cell named
// "diagnostico" or "diagnosticos" is skipped.
func ParseXLSX(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open catalog workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("catalog workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	labels := make([]string, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell := strings.TrimSpace(row[0])
		if i == 0 && isHeader(cell) {
			continue
		}
		labels = append(labels, cell)
	}
	return cleanLabels(labels), nil
}

func isHeader(cell string) bool {
	switch strings.ToLower(cell) {
	case "diagnostico", "diagnosticos", "diagnóstico", "diagnósticos":
		return true
	default:
		return false
	}
}

func cleanLabels(in []string) []string {
	out := make([]string, 0, len(in))
	for _, label := range in {
		label = strings.TrimSpace(label)
		if label != "" {
			out = append(out, label)
		}
	}
	return out
}
