package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notebook-engine-server/models"
)

func TestPyLiteral(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, "None"},
		{true, "True"},
		{false, "False"},
		{42, "42"},
		{int64(7), "7"},
		{0.25, "0.25"},
		{"plain", `"plain"`},
		{`quo"te`, `"quo\"te"`},
		{"back\\slash", `"back\\slash"`},
		{"line\nbreak", `"line\nbreak"`},
		{"tab\there", `"tab\there"`},
		{[]string{"a", "b"}, `["a", "b"]`},
		{[]interface{}{1, "x"}, `[1, "x"]`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, pyLiteral(tc.in), "input %#v", tc.in)
	}
}

func TestPyLiteralMapIsSorted(t *testing.T) {
	got := pyLiteral(map[string]interface{}{"zeta": 1, "alpha": 2})
	assert.Equal(t, `{"alpha": 2, "zeta": 1}`, got)
}

func TestPyLiteralBlocksScriptBreakout(t *testing.T) {
	// A hostile string must stay inside its Python string literal
	hostile := "\"\nimport os\nos.system(\"rm -rf /\")\n\""
	got := pyLiteral(hostile)
	assert.False(t, strings.Contains(got, "\n"), "rendered literal must be a single line: %s", got)
	assert.True(t, strings.HasPrefix(got, `"`) && strings.HasSuffix(got, `"`))
}

func TestPyKwargs(t *testing.T) {
	got := pyKwargs(
		map[string]interface{}{"n_estimators": 100, "random_state": 42},
		map[string]interface{}{"n_estimators": 250},
	)
	assert.Equal(t, "n_estimators=250, random_state=42", got)

	assert.Equal(t, "", pyKwargs(nil, nil))
}

func TestAlgorithmsFor(t *testing.T) {
	for _, task := range []string{models.TaskClassification, models.TaskRegression, models.TaskClustering} {
		algos := AlgorithmsFor(task)
		require.NotEmpty(t, algos, "task %s", task)
		for _, algo := range algos {
			_, err := lookupAlgorithm(task, algo)
			assert.NoError(t, err, "%s/%s must be in the catalog", task, algo)
		}
	}
	assert.Nil(t, AlgorithmsFor("time_series"))
}

func TestLookupAlgorithmRejectsUnknown(t *testing.T) {
	_, err := lookupAlgorithm(models.TaskClassification, "perceptron_9000")
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))

	_, err = lookupAlgorithm("oracle", "kmeans")
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestBuildAnalysisScript(t *testing.T) {
	b := NewScriptBuilder()

	script, err := b.BuildAnalysisScript(`result = df["age"].mean()`)
	require.NoError(t, err)

	// Interchange files are referenced by relative name only
	assert.Contains(t, script, `"data.json"`)
	assert.Contains(t, script, `"result.json"`)
	assert.NotContains(t, script, "/")

	// User code is embedded as a string literal handed to compile, never
	// spliced into the script body
	assert.Contains(t, script, `compile("result = df[\"age\"].mean()", "<analysis>", "exec")`)
	assert.Contains(t, script, `"result": None`)
	assert.Contains(t, script, "traceback.format_exc()")
}

func TestBuildAnalysisScriptRejectsEmptyCode(t *testing.T) {
	b := NewScriptBuilder()
	for _, code := range []string{"", "   ", "\n\t"} {
		_, err := b.BuildAnalysisScript(code)
		require.Error(t, err)
		assert.True(t, models.IsValidation(err))
	}
}

func TestBuildTrainingScriptClassification(t *testing.T) {
	b := NewScriptBuilder()
	req := &models.TrainingRequest{
		TaskType:       models.TaskClassification,
		Algorithm:      "random_forest",
		FeatureColumns: []string{"age", "income"},
		TargetColumn:   "churn",
	}

	script, err := b.BuildTrainingScript(req)
	require.NoError(t, err)

	assert.Contains(t, script, "from sklearn.ensemble import RandomForestClassifier")
	assert.Contains(t, script, "RandomForestClassifier(n_estimators=100, random_state=42)")
	assert.Contains(t, script, `["age", "income"]`)
	assert.Contains(t, script, `"churn"`)
	assert.Contains(t, script, `"accuracy"`)
	assert.Contains(t, script, `"f1Score"`)
	assert.Contains(t, script, "SimpleImputer")
	assert.Contains(t, script, "StandardScaler")
	assert.Contains(t, script, "train_test_split")
	assert.Contains(t, script, "test_size=0.2")
	assert.Contains(t, script, "joblib.dump")
	assert.Contains(t, script, "base64.b64encode")
	assert.NotContains(t, script, "cross_val_score(model")
}

func TestBuildTrainingScriptHyperparameterOverride(t *testing.T) {
	b := NewScriptBuilder()
	req := &models.TrainingRequest{
		TaskType:        models.TaskClassification,
		Algorithm:       "knn",
		FeatureColumns:  []string{"x"},
		TargetColumn:    "y",
		Hyperparameters: map[string]interface{}{"n_neighbors": 11},
	}

	script, err := b.BuildTrainingScript(req)
	require.NoError(t, err)
	assert.Contains(t, script, "KNeighborsClassifier(n_neighbors=11)")
}

func TestBuildTrainingScriptRegressionWithCV(t *testing.T) {
	b := NewScriptBuilder()
	req := &models.TrainingRequest{
		TaskType:        models.TaskRegression,
		Algorithm:       "linear_regression",
		FeatureColumns:  []string{"sqft"},
		TargetColumn:    "price",
		CrossValidation: true,
		TestFraction:    0.3,
	}

	script, err := b.BuildTrainingScript(req)
	require.NoError(t, err)

	assert.Contains(t, script, `"mse"`)
	assert.Contains(t, script, `"rmse"`)
	assert.Contains(t, script, `"r2Score"`)
	assert.Contains(t, script, `cross_val_score(model, X, y, cv=5, scoring="r2")`)
	assert.Contains(t, script, `"cvMean"`)
	assert.Contains(t, script, `"cvStd"`)
	assert.Contains(t, script, "test_size=0.3")
}

func TestBuildTrainingScriptClustering(t *testing.T) {
	b := NewScriptBuilder()
	req := &models.TrainingRequest{
		TaskType:       models.TaskClustering,
		Algorithm:      "kmeans",
		FeatureColumns: []string{"x", "y"},
	}

	script, err := b.BuildTrainingScript(req)
	require.NoError(t, err)

	assert.Contains(t, script, "KMeans(n_clusters=3, n_init=10, random_state=42)")
	assert.Contains(t, script, "fit_predict")
	assert.Contains(t, script, "silhouette_score")
	assert.Contains(t, script, `"nClusters"`)
	assert.NotContains(t, script, "train_test_split")
}

func TestBuildTrainingScriptUnknownAlgorithm(t *testing.T) {
	b := NewScriptBuilder()
	_, err := b.BuildTrainingScript(&models.TrainingRequest{
		TaskType:       models.TaskRegression,
		Algorithm:      "kmeans",
		FeatureColumns: []string{"x"},
		TargetColumn:   "y",
	})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestBuildPredictionScript(t *testing.T) {
	b := NewScriptBuilder()
	script := b.BuildPredictionScript()

	// The bundle arrives through the data file params, never script text
	assert.Contains(t, script, `ctx["params"]["serialized_state"]`)
	assert.Contains(t, script, "joblib.load")
	assert.Contains(t, script, "missing feature columns")
	assert.Contains(t, script, `bundle["imputer"].transform`)
	assert.Contains(t, script, `bundle["scaler"].transform`)
	assert.Contains(t, script, "inverse_transform")
}

func TestBuildAutoMLScript(t *testing.T) {
	b := NewScriptBuilder()
	req := &models.AutoMLRequest{
		TaskType:       models.TaskClassification,
		FeatureColumns: []string{"a", "b"},
		TargetColumn:   "label",
		TimeBudgetMs:   5000,
	}
	algos := []string{"random_forest", "logistic_regression"}

	script, err := b.BuildAutoMLScript(req, algos)
	require.NoError(t, err)

	for i, algo := range algos {
		assert.Contains(t, script, fmt.Sprintf("def _candidate_%d():", i))
		assert.Contains(t, script, pyLiteral(algo))
	}
	assert.Contains(t, script, "deadline = time.time() + 5")
	assert.Contains(t, script, "no candidate algorithm completed within the time budget")
	assert.Contains(t, script, `leaderboard.sort(key=lambda e: e["score"], reverse=True)`)
	assert.Contains(t, script, `"best_algorithm"`)
	assert.Contains(t, script, `"serialized_state"`)

	// One bundle only: the winner's
	assert.Equal(t, 1, strings.Count(script, "joblib.dump"))
}

func TestBuildAutoMLScriptRejectsEmptyCandidates(t *testing.T) {
	b := NewScriptBuilder()
	_, err := b.BuildAutoMLScript(&models.AutoMLRequest{TaskType: models.TaskClustering}, nil)
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestGeneratedScriptsHaveConsistentIndentation(t *testing.T) {
	// Tabs in Python source would break at runtime; everything the builder
	// emits must indent with spaces
	b := NewScriptBuilder()

	analysis, err := b.BuildAnalysisScript("result = 1")
	require.NoError(t, err)

	training, err := b.BuildTrainingScript(&models.TrainingRequest{
		TaskType:       models.TaskClassification,
		Algorithm:      "logistic_regression",
		FeatureColumns: []string{"x"},
		TargetColumn:   "y",
	})
	require.NoError(t, err)

	automl, err := b.BuildAutoMLScript(&models.AutoMLRequest{
		TaskType:       models.TaskRegression,
		FeatureColumns: []string{"x"},
		TargetColumn:   "y",
	}, []string{"linear_regression", "ridge"})
	require.NoError(t, err)

	for name, script := range map[string]string{
		"analysis":   analysis,
		"training":   training,
		"automl":     automl,
		"prediction": b.BuildPredictionScript(),
	} {
		assert.NotContains(t, script, "\t", "%s script contains a tab", name)
	}
}
