package dataset

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pable/go-rollcorr/internal/model"
)

// CorrelationHeader is the column order of the correlation table.
var CorrelationHeader = []string{"window", "avg_corr", "obp_corr", "slg_corr"}

// WriteCorrelations writes the correlation table. Undefined values are empty cells.
func WriteCorrelations(w io.Writer, rows []model.CorrelationRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CorrelationHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Window),
			formatNull(r.AvgCorr),
			formatNull(r.OBPCorr),
			formatNull(r.SLGCorr),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCorrelations reads a correlation table. Empty and NaN cells are undefined.
func ReadCorrelations(r io.Reader) ([]model.CorrelationRow, error) {
	cr := newReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty correlation file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := headerIndex(header, CorrelationHeader...)
	if err != nil {
		return nil, err
	}
	width := len(header)

	var out []model.CorrelationRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < width {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, width, len(rec))
		}
		var row model.CorrelationRow
		if row.Window, err = strconv.Atoi(strings.TrimSpace(rec[idx["window"]])); err != nil {
			return nil, fmt.Errorf("line %d: window: %w", line, err)
		}
		for name, dst := range map[string]*sql.NullFloat64{
			"avg_corr": &row.AvgCorr,
			"obp_corr": &row.OBPCorr,
			"slg_corr": &row.SLGCorr,
		} {
			if *dst, err = parseNull(rec[idx[name]]); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
		}
		out = append(out, row)
	}
}

func formatNull(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.Float64)
}

func parseNull(s string) (sql.NullFloat64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return sql.NullFloat64{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}, err
	}
	return sql.NullFloat64{Float64: v, Valid: true}, nil
}
