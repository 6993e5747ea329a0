// Package results assembles user-facing analysis results: presigned
// artifact bundles per camera angle and the ideal/workable/check metric
// classification parsed from the worker's results CSV.
package results

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// Range is a closed numeric interval.
type Range struct {
	Lo float64
	Hi float64
}

func (r Range) Contains(v float64) bool {
	return v >= r.Lo && v <= r.Hi
}

// MetricRule classifies one metric: values inside the (optional) ideal
// sub-range are ideal, values inside the wider workable range are
// workable, everything else needs a check.
type MetricRule struct {
	Ideal    *Range
	Workable Range
}

func (r MetricRule) Classify(v float64) Bucket {
	if r.Ideal != nil && r.Ideal.Contains(v) {
		return BucketIdeal
	}
	if r.Workable.Contains(v) {
		return BucketWorkable
	}
	return BucketCheck
}

type Bucket string

const (
	BucketIdeal    Bucket = "ideal"
	BucketWorkable Bucket = "workable"
	BucketCheck    Bucket = "check"
)

// RuleTable maps CSV metric names to their acceptable ranges.
type RuleTable map[string]MetricRule

// Classification tallies how many metrics landed in each bucket.
type Classification struct {
	Ideal    int `json:"ideal"`
	Workable int `json:"workable"`
	Check    int `json:"check"`
}

func ideal(lo, hi float64) *Range {
	return &Range{Lo: lo, Hi: hi}
}

// ScreeningRules drives the classification shown in analysis listings.
//
// ReportRules below uses different bounds for several of the same metric
// names. The divergence is inherited from the product side and the two
// tables are deliberately not reconciled here.
var ScreeningRules = RuleTable{
	"step_rate":               {Ideal: ideal(163, 184), Workable: Range{154, 192}},
	"vertical_oscillation":    {Ideal: ideal(6.5, 8.5), Workable: Range{5.0, 10.0}},
	"ground_contact_time":     {Ideal: ideal(200, 260), Workable: Range{180, 300}},
	"trunk_lean":              {Ideal: ideal(5, 9), Workable: Range{3, 12}},
	"foot_inclination":        {Ideal: ideal(0, 10), Workable: Range{-5, 20}},
	"knee_flexion_midstance":  {Ideal: ideal(38, 45), Workable: Range{30, 50}},
	"overstride_angle":        {Workable: Range{0, 8}},
	"pelvic_drop":             {Ideal: ideal(0, 5), Workable: Range{0, 8}},
	"arm_swing_angle":         {Ideal: ideal(60, 80), Workable: Range{45, 90}},
	"stride_length_ratio":     {Workable: Range{0.8, 1.2}},
}

// ReportRules is the range table consumed by the report/PDF renderer.
var ReportRules = RuleTable{
	"step_rate":              {Ideal: ideal(160, 180), Workable: Range{150, 190}},
	"vertical_oscillation":   {Ideal: ideal(6.0, 9.0), Workable: Range{4.5, 11.0}},
	"ground_contact_time":    {Workable: Range{170, 320}},
	"trunk_lean":             {Ideal: ideal(4, 10), Workable: Range{2, 14}},
	"knee_flexion_midstance": {Ideal: ideal(35, 48), Workable: Range{28, 55}},
	"pelvic_drop":            {Workable: Range{0, 10}},
}

// ParseResultsCSV reads a results document of exactly one header row plus
// one data row and returns the numeric columns by name. Non-numeric
// columns are skipped.
func ParseResultsCSV(data []byte) (map[string]float64, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing results CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("results CSV needs a header row and a data row, got %d rows", len(rows))
	}

	header, values := rows[0], rows[1]
	metrics := make(map[string]float64, len(header))
	for i, name := range header {
		if i >= len(values) {
			break
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(values[i]), 64)
		if err != nil {
			continue
		}
		metrics[name] = v
	}

	return metrics, nil
}

// ClassifyMetrics tallies the parsed metrics against the rule table.
// Metrics missing from the input are excluded from all buckets.
func ClassifyMetrics(metrics map[string]float64, rules RuleTable) Classification {
	var c Classification
	for name, rule := range rules {
		v, ok := metrics[name]
		if !ok {
			continue
		}
		switch rule.Classify(v) {
		case BucketIdeal:
			c.Ideal++
		case BucketWorkable:
			c.Workable++
		default:
			c.Check++
		}
	}
	return c
}

// ClassifyCSV parses the results CSV and classifies it in one step.
func ClassifyCSV(data []byte, rules RuleTable) (Classification, error) {
	metrics, err := ParseResultsCSV(data)
	if err != nil {
		return Classification{}, err
	}
	return ClassifyMetrics(metrics, rules), nil
}
