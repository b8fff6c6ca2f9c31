// Package export assembles per-reservoir snapshots into the published
// dataset and renders it in the hybrid pretty/dense JSON layout consumed
// downstream.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fjmahv/datosEmbalses/internal/domain"
)

// Metadata is the static attribution block written at the top of the
// output. The key dictionary makes each dense record self-describing: short
// keys resolve to the original MITECO column or indicator names.
type Metadata struct {
	Source string        `json:"fuente"`
	Keys   KeyDictionary `json:"mapeo"`
}

// KeyMapping pairs a short record key with the column or indicator name it
// abbreviates.
type KeyMapping struct {
	Short  string
	Column string
}

// KeyDictionary renders as a JSON object whose keys appear in slice order.
// The published dictionary lists columns before indicators, which a plain
// map would reshuffle alphabetically.
type KeyDictionary []KeyMapping

func (d KeyDictionary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, m.Short)
		buf.WriteByte(':')
		writeJSONString(&buf, m.Column)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *KeyDictionary) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("mapeo: expected a JSON object")
	}

	out := (*d)[:0]
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		var column string
		if err := dec.Decode(&column); err != nil {
			return err
		}
		out = append(out, KeyMapping{Short: keyTok.(string), Column: column})
	}
	*d = out
	return nil
}

// DefaultMetadata describes the MITECO source and the short-key dictionary
// used by every record. Constant for the life of a run.
var DefaultMetadata = Metadata{
	Source: "MITECO",
	Keys: KeyDictionary{
		{Short: "an", Column: "AMBITO_NOMBRE"},
		{Short: "en", Column: "EMBALSE_NOMBRE"},
		{Short: "at", Column: "AGUA_TOTAL"},
		{Short: "aa", Column: "AGUA_ACTUAL"},
		{Short: "f", Column: "FECHA_ULTIMO_DATO"},
		{Short: "m1s", Column: "Media_Ultima_Semana"},
		{Short: "m2s", Column: "Media_Ultimas_2_Semanas"},
		{Short: "m1m", Column: "Media_Ultimo_Mes"},
		{Short: "ma1", Column: "Media_Mismo_Mes_Anio_Anterior"},
		{Short: "h3a", Column: "Media_Historica_Mes_3_Anios"},
		{Short: "h5a", Column: "Media_Historica_Mes_5_Anios"},
		{Short: "h10a", Column: "Media_Historica_Mes_10_Anios"},
		{Short: "h20a", Column: "Media_Historica_Mes_20_Anios"},
		{Short: "ht", Column: "Media_Historica_Mes_Total"},
	},
}

// Record is one flattened output row: the grouping keys inlined next to the
// reservoir's snapshot.
type Record struct {
	Basin     string
	Reservoir string
	Snapshot  domain.Snapshot
}

// Dataset is the complete output document.
type Dataset struct {
	Metadata Metadata
	Records  []Record
}

// Assemble zips ordered group keys with their computed snapshots and
// attaches the static metadata. Keys and snapshots are parallel slices in
// the engine's output order, which the serializer preserves.
func Assemble(keys []domain.Key, snapshots []domain.Snapshot) Dataset {
	records := make([]Record, len(keys))
	for i, k := range keys {
		records[i] = Record{
			Basin:     k.Basin,
			Reservoir: k.Reservoir,
			Snapshot:  snapshots[i],
		}
	}
	return Dataset{Metadata: DefaultMetadata, Records: records}
}
