// Package csvfile reads the user provisioning input file.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"idcprov/idcprov/types"
)

// Row is one data line: either a usable record or the reason it was rejected.
type Row struct {
	Record types.UserRecord
	Err    *types.RowValidationError
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.FormatError{Path: path, Reason: "cannot open file", Err: err}
	}
	defer f.Close()
	return Read(path, f)
}

// Read validates the header and returns every data row in order. Header
// problems and files without data rows are FormatErrors; per-row problems are
// attached to the Row and do not stop parsing.
func Read(name string, r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &types.FormatError{Path: name, Reason: "file is empty"}
	}
	if err != nil {
		return nil, &types.FormatError{Path: name, Reason: "cannot read header", Err: err}
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if !slices.Equal(header, types.CSVColumns) {
		return nil, &types.FormatError{
			Path:   name,
			Reason: fmt.Sprintf("expected header %q, found %q", types.ExpectedHeader, strings.Join(header, ",")),
		}
	}

	var rows []Row
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				rows = append(rows, Row{
					Record: types.UserRecord{Line: perr.StartLine},
					Err:    &types.RowValidationError{Line: perr.StartLine, Reason: perr.Err.Error()},
				})
				continue
			}
			return nil, &types.FormatError{Path: name, Reason: "read failed", Err: err}
		}
		if blank(fields) {
			continue
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, parseRow(line, fields))
	}

	if len(rows) == 0 {
		return nil, &types.FormatError{Path: name, Reason: "no data rows after header"}
	}
	return rows, nil
}

// blank reports whether every field is empty after trimming, as for a line of
// only whitespace or only commas.
func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRow(line int, fields []string) Row {
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) != len(types.CSVColumns) {
		rec := types.UserRecord{Line: line}
		if len(fields) > 1 {
			rec.Username = fields[1]
		}
		return Row{
			Record: rec,
			Err: &types.RowValidationError{
				Line:   line,
				Reason: fmt.Sprintf("expected %d fields, found %d", len(types.CSVColumns), len(fields)),
			},
		}
	}

	rec := types.UserRecord{
		Line:        line,
		Email:       fields[0],
		Username:    fields[1],
		DisplayName: fields[2],
		GivenName:   fields[3],
		FamilyName:  fields[4],
	}
	if missing := rec.MissingFields(); len(missing) > 0 {
		return Row{Record: rec, Err: &types.RowValidationError{Line: line, Missing: missing}}
	}
	return Row{Record: rec}
}

// CheckUsername applies the identity store's documented username rules.
// It is only used when strict local validation is enabled.
func CheckUsername(rec types.UserRecord) *types.RowValidationError {
	for _, reserved := range types.ReservedUsernames {
		if strings.EqualFold(rec.Username, reserved) {
			return &types.RowValidationError{Line: rec.Line, Reason: fmt.Sprintf("username %q is reserved", rec.Username)}
		}
	}
	if len(rec.Username) > types.MaxUsernameLength {
		return &types.RowValidationError{
			Line:   rec.Line,
			Reason: fmt.Sprintf("username exceeds %d characters", types.MaxUsernameLength),
		}
	}
	return nil
}
