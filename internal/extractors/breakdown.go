package extractors

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
)

var (
	RiqAxis    = experiment.IntAxis("riq_id")
	TsAxis     = experiment.IntAxis("ts_ns")
	SeqAxis    = experiment.IntAxis("seq")
	UniqueAxis = experiment.IntAxis("unique")
	OpcodeAxis = experiment.TextAxis("opcode")
)

var DefaultOpcodes = []string{"READ", "WRITE"}

// Breakdown reads the per-request latency CSV written by the FUSE tracing
// tools. Both the "ts_ns,riq_id,opcode_name,..." and the older
// "unique,op,..." headers are accepted. Every column ending in "_us"
// becomes a metric. Rows of the riq_id format are ordered by timestamp; the
// older format keeps file order and its request id.
type Breakdown struct{}

func (Breakdown) Name() string { return "breakdown-csv" }

type breakdownRecord struct {
	riq    string
	unique string
	ts     int64
	opcode string
	values map[string]float64
	missed []string
}

func firstColumn(header map[string]int, names ...string) int {
	for _, n := range names {
		if i, ok := header[n]; ok {
			return i
		}
	}
	return -1
}

func (Breakdown) Extract(content []byte, hint Hint) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	head, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	header := make(map[string]int, len(head))
	for i, h := range head {
		header[strings.TrimSpace(h)] = i
	}
	tsCol := firstColumn(header, "ts_ns", "ts")
	opCol := firstColumn(header, "opcode_name", "op")
	riqCol := firstColumn(header, "riq_id")
	uniqueCol := firstColumn(header, "unique")
	if opCol < 0 || (tsCol < 0 && uniqueCol < 0) {
		return nil, errors.New("CSV lacks an opcode column or a timestamp/unique column")
	}
	if riqCol >= 0 && tsCol < 0 {
		return nil, errors.New("CSV has riq_id but no timestamp column")
	}
	var metricCols []int
	for i, h := range head {
		if strings.HasSuffix(strings.TrimSpace(h), "_us") {
			metricCols = append(metricCols, i)
		}
	}

	opcodes := hint.Opcodes
	if len(opcodes) == 0 {
		opcodes = DefaultOpcodes
	}
	keep := make(map[string]bool, len(opcodes))
	for _, op := range opcodes {
		keep[strings.ToUpper(op)] = true
	}

	var records []breakdownRecord
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV: %w", err)
		}
		if opCol >= len(rec) {
			continue
		}
		op := strings.TrimSpace(rec[opCol])
		if !keep[strings.ToUpper(op)] {
			continue
		}
		br := breakdownRecord{ts: -1, opcode: op, values: make(map[string]float64)}
		if tsCol >= 0 {
			if tsCol >= len(rec) {
				continue
			}
			ts, err := strconv.ParseInt(strings.TrimSpace(rec[tsCol]), 10, 64)
			if err != nil {
				continue
			}
			br.ts = ts
		}
		if riqCol >= 0 && riqCol < len(rec) {
			br.riq = strings.TrimSpace(rec[riqCol])
		}
		if uniqueCol >= 0 && uniqueCol < len(rec) {
			br.unique = strings.TrimSpace(rec[uniqueCol])
		}
		for _, c := range metricCols {
			name := strings.TrimSpace(head[c])
			if c < len(rec) {
				if v, ok := parseFloat(rec[c]); ok {
					br.values[name] = v
					continue
				}
			}
			br.missed = append(br.missed, name)
		}
		records = append(records, br)
	}

	if riqCol >= 0 {
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].ts < records[j].ts
		})
	}

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		b := dataframe.NewBuilder()
		for k, v := range rec.values {
			b.SetFloat(k, v)
		}
		for _, k := range rec.missed {
			b.SetMissing(k)
		}
		var labels []Label
		if riqCol >= 0 {
			labels = append(labels, Label{Axis: RiqAxis, Value: rec.riq})
		}
		if uniqueCol >= 0 {
			labels = append(labels, Label{Axis: UniqueAxis, Value: rec.unique})
		}
		if tsCol >= 0 {
			labels = append(labels, Label{Axis: TsAxis, Value: strconv.FormatInt(rec.ts, 10)})
		}
		labels = append(labels,
			Label{Axis: SeqAxis, Value: strconv.Itoa(i)},
			Label{Axis: OpcodeAxis, Value: rec.opcode},
		)
		rows = append(rows, Row{Labels: labels, Sample: b.Build()})
	}
	return rows, nil
}
