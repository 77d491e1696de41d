package services

import (
	"encoding/json"
	"fmt"
	"os"

	"notebook-engine-server/models"
)

// Marshaler moves tabular data and result envelopes across the interpreter
// boundary through the workspace interchange files.
type Marshaler struct{}

func NewMarshaler() *Marshaler {
	return &Marshaler{}
}

// dataContext is the shape of the data file the generated scripts read
type dataContext struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
	Params  map[string]interface{}   `json:"params"`
}

// resultEnvelope is the shape of the output file the generated scripts write
type resultEnvelope struct {
	Success bool        `json:"success"`
	Output  string      `json:"output"`
	Error   string      `json:"error"`
	Result  interface{} `json:"result"`
}

// WriteContext serializes the dataset and auxiliary parameters to the data
// file. The caller's rows are marshaled in place and never mutated.
func (m *Marshaler) WriteContext(path string, rows []map[string]interface{}, columns []string, extra map[string]interface{}) error {
	ctx := dataContext{
		Columns: columns,
		Rows:    rows,
		Params:  extra,
	}
	if ctx.Rows == nil {
		ctx.Rows = []map[string]interface{}{}
	}
	if ctx.Columns == nil {
		ctx.Columns = []string{}
	}
	if ctx.Params == nil {
		ctx.Params = map[string]interface{}{}
	}

	data, err := json.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("marshal data context: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write data context: %w", err)
	}
	return nil
}

// ReadResult parses the result envelope written by the script. When the
// envelope is missing or unparsable it degrades to a result built from the
// raw captured streams and the exit code, so a marshaling defect never masks
// the real execution outcome.
func (m *Marshaler) ReadResult(path string, run *RunOutput) *models.ExecutionResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return m.degradedResult(run)
	}

	var env resultEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return m.degradedResult(run)
	}

	res := &models.ExecutionResult{
		Success: env.Success,
		Output:  env.Output,
		Error:   env.Error,
		Result:  env.Result,
	}
	if res.Output == "" {
		res.Output = run.Stdout
	}
	if !res.Success && res.Error == "" {
		res.Error = firstNonEmpty(run.Stderr, fmt.Sprintf("script exited with code %d", run.ExitCode))
	}
	return res
}

func (m *Marshaler) degradedResult(run *RunOutput) *models.ExecutionResult {
	res := &models.ExecutionResult{
		Success: run.ExitCode == 0 && !run.TimedOut,
		Output:  run.Stdout,
	}
	if !res.Success {
		res.Error = firstNonEmpty(run.Stderr, fmt.Sprintf("script exited with code %d", run.ExitCode))
		if run.TimedOut {
			res.Error = firstNonEmpty(run.Stderr, "execution timed out")
		}
	}
	return res
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// FloatField extracts a numeric field from a decoded result map, coercing
// the JSON number representation to float64
func FloatField(result map[string]interface{}, key string) (float64, bool) {
	v, ok := result[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

// FloatMap coerces a decoded mapping of metric name to number. Entries that
// are not numeric are dropped.
func FloatMap(v interface{}) map[string]float64 {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, val := range raw {
		if f, ok := toFloat(val); ok {
			out[k] = f
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ResultMap returns the decoded result as a generic map, or nil when the
// result has some other shape
func ResultMap(res *models.ExecutionResult) map[string]interface{} {
	if res == nil || res.Result == nil {
		return nil
	}
	m, _ := res.Result.(map[string]interface{})
	return m
}

// ImportanceList decodes a feature-importance sequence from a result map
func ImportanceList(v interface{}) []models.FeatureImportance {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]models.FeatureImportance, 0, len(raw))
	for _, e := range raw {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := entry["feature"].(string)
		imp, _ := toFloat(entry["importance"])
		if name == "" {
			continue
		}
		out = append(out, models.FeatureImportance{Feature: name, Importance: imp})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
