package dataset

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/mindscope/core/frame"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
	"github.com/YuminosukeSato/mindscope/pkg/log"
)

// Load reads a CSV or XLSX file, chosen by extension, into a frame.
// Columns listed in NumericSourceColumns are parsed as float64; cells that
// do not parse become NaN. Other columns keep their raw text and an empty
// cell is missing.
func Load(path string) (*frame.Frame, error) {
	logger := log.GetLoggerWithName("dataset")
	start := time.Now()

	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "dataset file %s", path)
	}

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		rows, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, errors.NewDataError(path, "", "need a header row and at least one data row")
	}

	f, err := buildFrame(path, rows)
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded",
		log.OperationKey, log.OperationLoad,
		log.SourceKey, path,
		log.SamplesKey, f.NRows(),
		log.FeaturesKey, f.NCols(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return f, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open csv")
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read csv %s", path)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open xlsx")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewDataError(path, "", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %s", sheets[0])
	}
	return rows, nil
}

func buildFrame(path string, rows [][]string) (*frame.Frame, error) {
	header := rows[0]
	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for j, h := range header {
		names[j] = strings.TrimSpace(h)
		if names[j] == "" {
			return nil, errors.NewDataError(path, strconv.Itoa(j), "empty header")
		}
		if seen[names[j]] {
			return nil, errors.NewDataError(path, names[j], "duplicate header")
		}
		seen[names[j]] = true
	}

	data := rows[1:]
	n := len(data)
	cols := make([]*frame.Column, len(names))
	for j, name := range names {
		if NumericSourceColumns[name] {
			values := make([]float64, n)
			bad := 0
			for i, r := range data {
				raw := cell(r, j)
				values[i] = parseCell(raw)
				if math.IsNaN(values[i]) && strings.TrimSpace(raw) != "" {
					bad++
				}
			}
			if bad > 0 {
				errors.Warn(errors.NewDataConversionWarning("text", "float64",
					fmt.Sprintf("%d unparseable cells in %q treated as missing", bad, name)))
			}
			cols[j] = frame.NewNumeric(name, values)
			continue
		}
		values := make([]string, n)
		valid := make([]bool, n)
		for i, r := range data {
			values[i] = cell(r, j)
			valid[i] = values[i] != ""
		}
		cols[j] = frame.NewString(name, values, valid)
	}
	return frame.New(cols...)
}

// cell pads short rows; excelize drops trailing empty cells.
func cell(row []string, j int) string {
	if j < len(row) {
		return row[j]
	}
	return ""
}

func parseCell(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
