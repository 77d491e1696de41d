package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notebook-engine-server/models"
)

func TestWriteContext(t *testing.T) {
	m := NewMarshaler()
	path := filepath.Join(t.TempDir(), DataFileName)

	rows := []map[string]interface{}{
		{"age": 34, "name": "ada"},
		{"age": 41, "name": "grace"},
	}
	err := m.WriteContext(path, rows, []string{"age", "name"}, map[string]interface{}{"k": "v"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var ctx struct {
		Columns []string                 `json:"columns"`
		Rows    []map[string]interface{} `json:"rows"`
		Params  map[string]interface{}   `json:"params"`
	}
	require.NoError(t, json.Unmarshal(data, &ctx))
	assert.Equal(t, []string{"age", "name"}, ctx.Columns)
	assert.Len(t, ctx.Rows, 2)
	assert.Equal(t, "ada", ctx.Rows[0]["name"])
	assert.Equal(t, "v", ctx.Params["k"])
}

func TestWriteContextNilDefaults(t *testing.T) {
	// Scripts index into rows/columns/params unconditionally, so nil inputs
	// must serialize as empty containers rather than null
	m := NewMarshaler()
	path := filepath.Join(t.TempDir(), DataFileName)

	require.NoError(t, m.WriteContext(path, nil, nil, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns": [], "rows": [], "params": {}}`, string(data))
}

func TestReadResultEnvelope(t *testing.T) {
	m := NewMarshaler()
	path := filepath.Join(t.TempDir(), ResultFileName)

	envelope := `{"success": true, "output": "hello\n", "error": null, "result": {"mean": 37.5}}`
	require.NoError(t, os.WriteFile(path, []byte(envelope), 0644))

	res := m.ReadResult(path, &RunOutput{ExitCode: 0})
	assert.True(t, res.Success)
	assert.Equal(t, "hello\n", res.Output)
	assert.Empty(t, res.Error)

	result, ok := res.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 37.5, result["mean"])
}

func TestReadResultFailedEnvelopeFallsBackToStreams(t *testing.T) {
	m := NewMarshaler()
	path := filepath.Join(t.TempDir(), ResultFileName)

	require.NoError(t, os.WriteFile(path, []byte(`{"success": false}`), 0644))

	res := m.ReadResult(path, &RunOutput{Stdout: "partial", Stderr: "Traceback ...", ExitCode: 1})
	assert.False(t, res.Success)
	assert.Equal(t, "partial", res.Output)
	assert.Equal(t, "Traceback ...", res.Error)
}

func TestReadResultMissingFile(t *testing.T) {
	m := NewMarshaler()
	path := filepath.Join(t.TempDir(), ResultFileName)

	// Clean exit without an envelope still counts as success
	res := m.ReadResult(path, &RunOutput{Stdout: "ok\n", ExitCode: 0})
	assert.True(t, res.Success)
	assert.Equal(t, "ok\n", res.Output)

	// Non-zero exit reports the exit code when stderr is empty
	res = m.ReadResult(path, &RunOutput{ExitCode: 3})
	assert.False(t, res.Success)
	assert.Equal(t, "script exited with code 3", res.Error)

	// Timeout wins over exit-code wording
	res = m.ReadResult(path, &RunOutput{ExitCode: -1, TimedOut: true})
	assert.False(t, res.Success)
	assert.Equal(t, "execution timed out", res.Error)
}

func TestReadResultUnparsableEnvelope(t *testing.T) {
	m := NewMarshaler()
	path := filepath.Join(t.TempDir(), ResultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	res := m.ReadResult(path, &RunOutput{Stderr: "boom", ExitCode: 1})
	assert.False(t, res.Success)
	assert.Equal(t, "boom", res.Error)
}

func TestFloatField(t *testing.T) {
	result := map[string]interface{}{
		"float":  0.93,
		"int":    7,
		"string": "nope",
	}

	v, ok := FloatField(result, "float")
	assert.True(t, ok)
	assert.Equal(t, 0.93, v)

	v, ok = FloatField(result, "int")
	assert.True(t, ok)
	assert.Equal(t, 7.0, v)

	_, ok = FloatField(result, "string")
	assert.False(t, ok)

	_, ok = FloatField(result, "absent")
	assert.False(t, ok)
}

func TestFloatMap(t *testing.T) {
	got := FloatMap(map[string]interface{}{
		"accuracy": 0.91,
		"note":     "dropped",
	})
	assert.Equal(t, map[string]float64{"accuracy": 0.91}, got)

	assert.Nil(t, FloatMap("not a map"))
	assert.Nil(t, FloatMap(map[string]interface{}{"only": "strings"}))
}

func TestResultMap(t *testing.T) {
	assert.Nil(t, ResultMap(nil))
	assert.Nil(t, ResultMap(&models.ExecutionResult{}))
	assert.Nil(t, ResultMap(&models.ExecutionResult{Result: []interface{}{1}}))

	m := ResultMap(&models.ExecutionResult{Result: map[string]interface{}{"x": 1}})
	require.NotNil(t, m)
	assert.Equal(t, 1, m["x"])
}

func TestImportanceList(t *testing.T) {
	got := ImportanceList([]interface{}{
		map[string]interface{}{"feature": "age", "importance": 0.7},
		map[string]interface{}{"feature": "income", "importance": 0.3},
		map[string]interface{}{"importance": 0.1}, // nameless, dropped
		"garbage",
	})
	require.Len(t, got, 2)
	assert.Equal(t, models.FeatureImportance{Feature: "age", Importance: 0.7}, got[0])
	assert.Equal(t, models.FeatureImportance{Feature: "income", Importance: 0.3}, got[1])

	assert.Nil(t, ImportanceList(nil))
	assert.Nil(t, ImportanceList([]interface{}{}))
}
