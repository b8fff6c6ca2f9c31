package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"
)

// Write renders the dataset in the hybrid layout: the metadata block is
// pretty-printed for humans, while each data record occupies exactly one
// dense line so a reservoir's change stays a one-line diff under version
// control. No stock JSON encoder mixes indentation densities, so the
// document frame is emitted directly.
func Write(w io.Writer, ds Dataset) error {
	bw := bufio.NewWriter(w)

	meta, err := json.MarshalIndent(ds.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	bw.WriteString("{\n  \"metadatos\": ")
	bw.Write(meta)
	bw.WriteString(",\n  \"datos\": [\n")

	var buf bytes.Buffer
	for i, r := range ds.Records {
		buf.Reset()
		EncodeRecord(&buf, r)
		bw.WriteString("    ")
		bw.Write(buf.Bytes())
		if i < len(ds.Records)-1 {
			bw.WriteString(",\n")
		} else {
			bw.WriteString("\n")
		}
	}

	bw.WriteString("  ]\n}\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

// WriteFile writes the dataset to path via a temp file and rename, so a
// failed run never leaves a truncated file that looks valid.
func WriteFile(path string, ds Dataset) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create output temp file: %w", err)
	}

	if err := Write(tmp, ds); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close output temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("finalize output file: %w", err)
	}
	return nil
}

// EncodeRecord emits one record as a compact JSON object with a fixed key
// order and no internal whitespace. The Kafka publisher reuses it so stream
// and file consumers see identical record bytes.
func EncodeRecord(buf *bytes.Buffer, r Record) {
	s := r.Snapshot

	buf.WriteByte('{')
	writeStringField(buf, "an", r.Basin)
	buf.WriteByte(',')
	writeStringField(buf, "en", r.Reservoir)
	buf.WriteByte(',')
	writeFloatField(buf, "aa", s.VolumeCurrent)
	buf.WriteByte(',')
	writeFloatField(buf, "at", s.CapacityTotal)
	buf.WriteByte(',')
	writeStringField(buf, "f", s.ReferenceDate.Format("2006-01-02"))
	buf.WriteByte(',')
	writeMeanField(buf, "m1s", s.MeanLastWeek)
	buf.WriteByte(',')
	writeMeanField(buf, "m2s", s.MeanLastFortnight)
	buf.WriteByte(',')
	writeMeanField(buf, "m1m", s.MeanLastMonth)
	buf.WriteByte(',')
	writeMeanField(buf, "ma1", s.MeanPriorYearMonth)
	buf.WriteByte(',')
	writeMeanField(buf, "h3a", s.MeanMonth3y)
	buf.WriteByte(',')
	writeMeanField(buf, "h5a", s.MeanMonth5y)
	buf.WriteByte(',')
	writeMeanField(buf, "h10a", s.MeanMonth10y)
	buf.WriteByte(',')
	writeMeanField(buf, "h20a", s.MeanMonth20y)
	buf.WriteByte(',')
	writeMeanField(buf, "ht", s.MeanMonthAll)
	buf.WriteByte('}')
}

func writeStringField(buf *bytes.Buffer, key, value string) {
	buf.WriteByte('"')
	buf.WriteString(key)
	buf.WriteString("\":")
	writeJSONString(buf, value)
}

func writeFloatField(buf *bytes.Buffer, key string, value float64) {
	buf.WriteByte('"')
	buf.WriteString(key)
	buf.WriteString("\":")
	buf.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
}

func writeMeanField(buf *bytes.Buffer, key string, value *float64) {
	if value == nil {
		buf.WriteByte('"')
		buf.WriteString(key)
		buf.WriteString("\":null")
		return
	}
	writeFloatField(buf, key, *value)
}

// writeJSONString escapes only what JSON requires. Accented reservoir names
// are written literally (the output is UTF-8), and HTML-significant
// characters are left alone.
func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case utf8.RuneError:
			buf.WriteString(`�`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}
