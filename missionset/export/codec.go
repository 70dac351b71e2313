package export

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/parquet-go/parquet-go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidFormat is returned when decoding input that is not a valid
// index file for the codec.
var ErrInvalidFormat = errors.New("export: invalid format")

// Codec encodes and decodes task rows.
type Codec interface {
	// Name returns the codec identifier (for example, "jsonl" or "parquet").
	Name() string

	// Extension returns the file extension written by the codec.
	Extension() string

	// Encode writes rows to the given writer.
	Encode(w io.Writer, rows []TaskRow) error

	// Decode reads rows from the given reader.
	Decode(r io.Reader) ([]TaskRow, error)
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "jsonl":
		return NewJSONL(), nil
	case "parquet":
		return NewParquet(), nil
	default:
		return nil, fmt.Errorf("export: unknown codec %q", name)
	}
}

// -----------------------------------------------------------------------------
// JSONL
// -----------------------------------------------------------------------------

// JSONL writes one JSON object per line.
type JSONL struct{}

// NewJSONL creates a JSONL codec.
func NewJSONL() *JSONL {
	return &JSONL{}
}

// Name returns the codec identifier.
func (c *JSONL) Name() string {
	return "jsonl"
}

// Extension returns ".jsonl".
func (c *JSONL) Extension() string {
	return ".jsonl"
}

// Encode writes rows as JSON lines.
func (c *JSONL) Encode(w io.Writer, rows []TaskRow) error {
	enc := json.NewEncoder(w)
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			return fmt.Errorf("jsonl: encode row %d: %w", i, err)
		}
	}
	return nil
}

// Decode reads JSON lines back into rows. Blank lines are skipped.
func (c *JSONL) Decode(r io.Reader) ([]TaskRow, error) {
	var rows []TaskRow
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		var row TaskRow
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, fmt.Errorf("%w: jsonl line %d: %w", ErrInvalidFormat, line, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonl: read: %w", err)
	}
	return rows, nil
}

var _ Codec = (*JSONL)(nil)

// -----------------------------------------------------------------------------
// Parquet
// -----------------------------------------------------------------------------

// parquetRow is the on-disk column layout. Goal ids are a LIST column so
// ids may contain any character.
type parquetRow struct {
	Type       string   `parquet:"type"`
	TaskID     string   `parquet:"task_id"`
	ScenarioID string   `parquet:"scenario_id"`
	GoalIDs    []string `parquet:"goal_ids,list"`
	GoalCount  int32    `parquet:"goal_count"`
	Source     string   `parquet:"source"`
}

// Parquet writes a snappy-compressed Parquet file.
type Parquet struct{}

// NewParquet creates a Parquet codec.
func NewParquet() *Parquet {
	return &Parquet{}
}

// Name returns the codec identifier.
func (c *Parquet) Name() string {
	return "parquet"
}

// Extension returns ".parquet".
func (c *Parquet) Extension() string {
	return ".parquet"
}

// Encode writes rows as a single Parquet file.
func (c *Parquet) Encode(w io.Writer, rows []TaskRow) error {
	out := make([]parquetRow, len(rows))
	for i, r := range rows {
		out[i] = parquetRow{
			Type:       r.Type,
			TaskID:     r.TaskID,
			ScenarioID: r.ScenarioID,
			GoalIDs:    r.GoalIDs,
			GoalCount:  int32(r.GoalCount),
			Source:     r.Source,
		}
	}

	// Parquet needs the whole file before the footer can be written.
	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[parquetRow](&buf, parquet.Compression(&parquet.Snappy))
	if len(out) > 0 {
		if _, err := writer.Write(out); err != nil {
			_ = writer.Close()
			return fmt.Errorf("parquet: write rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("parquet: close writer: %w", err)
	}
	if _, err := io.Copy(w, &buf); err != nil {
		return fmt.Errorf("parquet: write output: %w", err)
	}
	return nil
}

// Decode reads a Parquet file written by Encode.
func (c *Parquet) Decode(r io.Reader) ([]TaskRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("parquet: read file: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrInvalidFormat
	}

	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	if file.NumRows() == 0 {
		return []TaskRow{}, nil
	}

	reader := parquet.NewGenericReader[parquetRow](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	buf := make([]parquetRow, reader.NumRows())
	n, err := reader.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parquet: read rows: %w", err)
	}

	rows := make([]TaskRow, 0, n)
	for _, p := range buf[:n] {
		var ids []string
		if len(p.GoalIDs) > 0 {
			ids = p.GoalIDs
		}
		rows = append(rows, TaskRow{
			Type:       p.Type,
			TaskID:     p.TaskID,
			ScenarioID: p.ScenarioID,
			GoalIDs:    ids,
			GoalCount:  int(p.GoalCount),
			Source:     p.Source,
		})
	}
	return rows, nil
}

var _ Codec = (*Parquet)(nil)
