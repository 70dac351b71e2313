package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

type printer struct {
	format outputFormat
	w      io.Writer
}

func newPrinter(format string, w io.Writer) (*printer, error) {
	switch f := outputFormat(format); f {
	case formatText, formatJSON, formatYAML:
		return &printer{format: f, w: w}, nil
	case "":
		return &printer{format: formatText, w: w}, nil
	default:
		return nil, usagef("unknown output format %q (want text, json, or yaml)", format)
	}
}

func (p *printer) print(v any, text func(w io.Writer) error) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(p.w)
	}
}

// table writes aligned columns with an upper-case header row.
func table(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	upper := make([]string, len(headers))
	for i, h := range headers {
		upper[i] = strings.ToUpper(h)
	}
	if _, err := fmt.Fprintln(tw, strings.Join(upper, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// lines writes one value per line.
func lines(w io.Writer, values []string) error {
	for _, v := range values {
		if _, err := fmt.Fprintln(w, v); err != nil {
			return err
		}
	}
	return nil
}
