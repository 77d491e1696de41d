package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"notebook-engine-server/models"
)

// Interchange file names inside a workspace. Scripts run with the workspace
// as their working directory, so the generated code refers to these names
// directly and no paths are ever interpolated into script text.
const (
	DataFileName   = "data.json"
	ResultFileName = "result.json"
	ScriptFileName = "script.py"
)

// algorithmSpec describes how to import and instantiate one estimator
type algorithmSpec struct {
	Import   string
	Class    string
	Defaults map[string]interface{}
}

var algorithmCatalog = map[string]map[string]algorithmSpec{
	models.TaskClassification: {
		"logistic_regression": {"from sklearn.linear_model import LogisticRegression", "LogisticRegression", map[string]interface{}{"max_iter": 1000}},
		"random_forest":       {"from sklearn.ensemble import RandomForestClassifier", "RandomForestClassifier", map[string]interface{}{"n_estimators": 100, "random_state": 42}},
		"gradient_boosting":   {"from sklearn.ensemble import GradientBoostingClassifier", "GradientBoostingClassifier", map[string]interface{}{"random_state": 42}},
		"decision_tree":       {"from sklearn.tree import DecisionTreeClassifier", "DecisionTreeClassifier", map[string]interface{}{"random_state": 42}},
		"svm":                 {"from sklearn.svm import SVC", "SVC", map[string]interface{}{"random_state": 42}},
		"knn":                 {"from sklearn.neighbors import KNeighborsClassifier", "KNeighborsClassifier", map[string]interface{}{"n_neighbors": 5}},
		"naive_bayes":         {"from sklearn.naive_bayes import GaussianNB", "GaussianNB", nil},
	},
	models.TaskRegression: {
		"linear_regression": {"from sklearn.linear_model import LinearRegression", "LinearRegression", nil},
		"ridge":             {"from sklearn.linear_model import Ridge", "Ridge", map[string]interface{}{"random_state": 42}},
		"lasso":             {"from sklearn.linear_model import Lasso", "Lasso", map[string]interface{}{"random_state": 42}},
		"random_forest":     {"from sklearn.ensemble import RandomForestRegressor", "RandomForestRegressor", map[string]interface{}{"n_estimators": 100, "random_state": 42}},
		"gradient_boosting": {"from sklearn.ensemble import GradientBoostingRegressor", "GradientBoostingRegressor", map[string]interface{}{"random_state": 42}},
		"decision_tree":     {"from sklearn.tree import DecisionTreeRegressor", "DecisionTreeRegressor", map[string]interface{}{"random_state": 42}},
		"svr":               {"from sklearn.svm import SVR", "SVR", nil},
		"knn":               {"from sklearn.neighbors import KNeighborsRegressor", "KNeighborsRegressor", map[string]interface{}{"n_neighbors": 5}},
	},
	models.TaskClustering: {
		"kmeans":           {"from sklearn.cluster import KMeans", "KMeans", map[string]interface{}{"n_clusters": 3, "n_init": 10, "random_state": 42}},
		"dbscan":           {"from sklearn.cluster import DBSCAN", "DBSCAN", nil},
		"hierarchical":     {"from sklearn.cluster import AgglomerativeClustering", "AgglomerativeClustering", map[string]interface{}{"n_clusters": 3}},
		"gaussian_mixture": {"from sklearn.mixture import GaussianMixture", "GaussianMixture", map[string]interface{}{"n_components": 3, "random_state": 42}},
	},
}

// slowAlgorithms are dropped from AutoML candidate lists when the caller
// asks to optimize for speed
var slowAlgorithms = map[string]bool{
	"svm":               true,
	"svr":               true,
	"gradient_boosting": true,
}

// AlgorithmsFor returns the candidate algorithm names for a task type,
// in a stable preference order
func AlgorithmsFor(taskType string) []string {
	switch taskType {
	case models.TaskClassification:
		return []string{"random_forest", "logistic_regression", "gradient_boosting", "decision_tree", "knn", "naive_bayes", "svm"}
	case models.TaskRegression:
		return []string{"random_forest", "linear_regression", "gradient_boosting", "ridge", "lasso", "decision_tree", "knn", "svr"}
	case models.TaskClustering:
		return []string{"kmeans", "hierarchical", "gaussian_mixture", "dbscan"}
	}
	return nil
}

// ScriptBuilder turns structured requests into complete interpreter scripts.
// It performs no I/O; malformed requests are rejected here, before any
// process is spawned.
type ScriptBuilder struct{}

func NewScriptBuilder() *ScriptBuilder {
	return &ScriptBuilder{}
}

// pyLiteral renders a Go value as a Python literal. Everything that reaches
// script text goes through here, so quoting and escaping live in one place.
func pyLiteral(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case string:
		var b strings.Builder
		b.WriteByte('"')
		for _, r := range t {
			switch r {
			case '\\':
				b.WriteString(`\\`)
			case '"':
				b.WriteString(`\"`)
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			case 0:
				b.WriteString(`\x00`)
			default:
				b.WriteRune(r)
			}
		}
		b.WriteByte('"')
		return b.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case []string:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = pyLiteral(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []interface{}:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = pyLiteral(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = pyLiteral(k) + ": " + pyLiteral(t[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return pyLiteral(fmt.Sprintf("%v", t))
	}
}

// pyKwargs renders merged constructor keyword arguments, defaults first,
// caller hyperparameters overriding
func pyKwargs(defaults, overrides map[string]interface{}) string {
	merged := map[string]interface{}{}
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + pyLiteral(merged[k])
	}
	return strings.Join(parts, ", ")
}

func lookupAlgorithm(taskType, algorithm string) (algorithmSpec, error) {
	byTask, ok := algorithmCatalog[taskType]
	if !ok {
		return algorithmSpec{}, models.NewValidationError("task_type", fmt.Sprintf("unknown task type %q", taskType))
	}
	spec, ok := byTask[algorithm]
	if !ok {
		return algorithmSpec{}, models.NewValidationError("algorithm", fmt.Sprintf("unknown algorithm %q for task type %q", algorithm, taskType))
	}
	return spec, nil
}

// BuildAnalysisScript wraps user analysis code. The wrapped script loads the
// marshaled dataset into a DataFrame named df, captures stdout/stderr, runs
// the code, and writes the result envelope whatever happens. The result
// contract is explicit: the code assigns to a variable named result.
func (b *ScriptBuilder) BuildAnalysisScript(code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", models.NewValidationError("code", "code must not be empty")
	}
	return fmt.Sprintf(`import io
import json
import sys
import traceback


def _json_default(o):
    try:
        import numpy as np
        if isinstance(o, np.integer):
            return int(o)
        if isinstance(o, np.floating):
            return float(o)
        if isinstance(o, np.ndarray):
            return o.tolist()
    except ImportError:
        pass
    try:
        import pandas as pd
        if isinstance(o, pd.DataFrame):
            return o.to_dict(orient="records")
        if isinstance(o, pd.Series):
            return o.tolist()
    except ImportError:
        pass
    return str(o)


envelope = {"success": False, "output": "", "error": None, "result": None}
_out = io.StringIO()
_errbuf = io.StringIO()
try:
    import pandas as pd
    with open(%s) as f:
        _ctx = json.load(f)
    df = pd.DataFrame(_ctx.get("rows") or [], columns=_ctx.get("columns") or None)
    params = _ctx.get("params") or {}
    _scope = {"df": df, "params": params, "result": None}
    _stdout, _stderr = sys.stdout, sys.stderr
    sys.stdout, sys.stderr = _out, _errbuf
    try:
        exec(compile(%s, "<analysis>", "exec"), _scope)
    finally:
        sys.stdout, sys.stderr = _stdout, _stderr
    envelope["success"] = True
    envelope["result"] = _scope.get("result")
except Exception:
    envelope["error"] = traceback.format_exc()
finally:
    envelope["output"] = _out.getvalue()
    if envelope["error"] is None and _errbuf.getvalue():
        envelope["error"] = _errbuf.getvalue()
    with open(%s, "w") as f:
        json.dump(envelope, f, default=_json_default)
    if envelope["output"]:
        print(envelope["output"], end="")
`, pyLiteral(DataFileName), pyLiteral(code), pyLiteral(ResultFileName)), nil
}

// BuildTrainingScript emits a complete training script for one algorithm:
// imputation, scaling, estimator fit, metrics keyed by task type, optional
// cross-validation, feature importance, and bundle serialization.
func (b *ScriptBuilder) BuildTrainingScript(req *models.TrainingRequest) (string, error) {
	spec, err := lookupAlgorithm(req.TaskType, req.Algorithm)
	if err != nil {
		return "", err
	}
	if req.TaskType == models.TaskClustering {
		return b.buildClusteringScript(req, spec), nil
	}
	return b.buildSupervisedScript(req, spec), nil
}

func (b *ScriptBuilder) buildSupervisedScript(req *models.TrainingRequest, spec algorithmSpec) string {
	testFraction := req.TestFraction
	if testFraction <= 0 || testFraction >= 1 {
		testFraction = 0.2
	}

	var metricsImport, metricsBlock, cvScoring string
	if req.TaskType == models.TaskClassification {
		metricsImport = "from sklearn.metrics import accuracy_score, precision_score, recall_score, f1_score"
		metricsBlock = `    performance = {
        "accuracy": float(accuracy_score(y_test, y_pred)),
        "precision": float(precision_score(y_test, y_pred, average="weighted", zero_division=0)),
        "recall": float(recall_score(y_test, y_pred, average="weighted", zero_division=0)),
        "f1Score": float(f1_score(y_test, y_pred, average="weighted", zero_division=0)),
    }`
		cvScoring = "accuracy"
	} else {
		metricsImport = "from sklearn.metrics import mean_squared_error, r2_score"
		metricsBlock = `    mse = float(mean_squared_error(y_test, y_pred))
    performance = {
        "mse": mse,
        "rmse": float(np.sqrt(mse)),
        "r2Score": float(r2_score(y_test, y_pred)),
    }`
		cvScoring = "r2"
	}

	cvBlock := ""
	if req.CrossValidation {
		cvBlock = fmt.Sprintf(`    cv_scores = cross_val_score(model, X, y, cv=5, scoring=%s)
    performance["cvMean"] = float(cv_scores.mean())
    performance["cvStd"] = float(cv_scores.std())
`, pyLiteral(cvScoring))
	}

	encodeTarget := ""
	if req.TaskType == models.TaskClassification {
		encodeTarget = `    if y.dtype == object or str(y.dtype).startswith("str"):
        label_encoder = LabelEncoder()
        y = label_encoder.fit_transform(y.astype(str))
    else:
        y = pd.to_numeric(y, errors="coerce").fillna(0).values
`
	} else {
		encodeTarget = `    y = pd.to_numeric(y, errors="coerce").fillna(0).values
`
	}

	return fmt.Sprintf(`import base64
import io
import json
import traceback

envelope = {"success": False, "output": "", "error": None, "result": None}
try:
    import joblib
    import numpy as np
    import pandas as pd
    from sklearn.impute import SimpleImputer
    from sklearn.model_selection import cross_val_score, train_test_split
    from sklearn.preprocessing import LabelEncoder, StandardScaler
    %s
    %s

    with open(%s) as f:
        ctx = json.load(f)
    df = pd.DataFrame(ctx["rows"], columns=ctx["columns"])
    feature_columns = %s
    target_column = %s

    raw = df[feature_columns].apply(pd.to_numeric, errors="coerce")
    imputer = SimpleImputer(strategy="mean")
    imputed = imputer.fit_transform(raw)
    scaler = StandardScaler()
    X = scaler.fit_transform(imputed)

    label_encoder = None
    y = df[target_column]
%s
    model = %s(%s)
    X_train, X_test, y_train, y_test = train_test_split(
        X, y, test_size=%s, random_state=42)
    model.fit(X_train, y_train)
    y_pred = model.predict(X_test)
%s
%s
    importances = None
    if hasattr(model, "feature_importances_"):
        importances = np.asarray(model.feature_importances_, dtype=float)
    elif hasattr(model, "coef_"):
        coef = np.asarray(model.coef_, dtype=float)
        importances = np.abs(coef).reshape(-1, len(feature_columns)).mean(axis=0)
    feature_importance = None
    if importances is not None:
        total = float(importances.sum())
        if total > 0:
            importances = importances / total
        feature_importance = sorted(
            [{"feature": c, "importance": float(v)} for c, v in zip(feature_columns, importances)],
            key=lambda e: e["importance"], reverse=True)

    buf = io.BytesIO()
    joblib.dump({
        "model": model,
        "imputer": imputer,
        "scaler": scaler,
        "label_encoder": label_encoder,
        "feature_columns": feature_columns,
    }, buf)
    serialized = base64.b64encode(buf.getvalue()).decode("ascii")

    envelope["result"] = {
        "performance": performance,
        "feature_importance": feature_importance,
        "serialized_state": serialized,
    }
    envelope["success"] = True
except Exception:
    envelope["error"] = traceback.format_exc()
finally:
    with open(%s, "w") as f:
        json.dump(envelope, f)
`,
		spec.Import,
		metricsImport,
		pyLiteral(DataFileName),
		pyLiteral(req.FeatureColumns),
		pyLiteral(req.TargetColumn),
		encodeTarget,
		spec.Class,
		pyKwargs(spec.Defaults, req.Hyperparameters),
		pyLiteral(testFraction),
		metricsBlock,
		cvBlock,
		pyLiteral(ResultFileName),
	)
}

func (b *ScriptBuilder) buildClusteringScript(req *models.TrainingRequest, spec algorithmSpec) string {
	return fmt.Sprintf(`import base64
import io
import json
import traceback

envelope = {"success": False, "output": "", "error": None, "result": None}
try:
    import joblib
    import numpy as np
    import pandas as pd
    from sklearn.impute import SimpleImputer
    from sklearn.metrics import silhouette_score
    from sklearn.preprocessing import StandardScaler
    %s

    with open(%s) as f:
        ctx = json.load(f)
    df = pd.DataFrame(ctx["rows"], columns=ctx["columns"])
    feature_columns = %s

    raw = df[feature_columns].apply(pd.to_numeric, errors="coerce")
    imputer = SimpleImputer(strategy="mean")
    imputed = imputer.fit_transform(raw)
    scaler = StandardScaler()
    X = scaler.fit_transform(imputed)

    model = %s(%s)
    labels = model.fit_predict(X)
    labels = np.asarray(labels)
    clusters = set(int(l) for l in labels if int(l) != -1)
    performance = {"nClusters": float(len(clusters))}
    if len(clusters) > 1:
        performance["silhouette"] = float(silhouette_score(X, labels))

    buf = io.BytesIO()
    joblib.dump({
        "model": model,
        "imputer": imputer,
        "scaler": scaler,
        "label_encoder": None,
        "feature_columns": feature_columns,
    }, buf)
    serialized = base64.b64encode(buf.getvalue()).decode("ascii")

    envelope["result"] = {
        "performance": performance,
        "labels": [int(l) for l in labels],
        "serialized_state": serialized,
    }
    envelope["success"] = True
except Exception:
    envelope["error"] = traceback.format_exc()
finally:
    with open(%s, "w") as f:
        json.dump(envelope, f)
`,
		spec.Import,
		pyLiteral(DataFileName),
		pyLiteral(req.FeatureColumns),
		spec.Class,
		pyKwargs(spec.Defaults, req.Hyperparameters),
		pyLiteral(ResultFileName),
	)
}

// BuildPredictionScript emits the rehydration script. The stored bundle
// arrives through the data file params (never through script text), is
// deserialized, and its fitted preprocessing stages are replayed on the new
// rows before predicting.
func (b *ScriptBuilder) BuildPredictionScript() string {
	return fmt.Sprintf(`import base64
import io
import json
import traceback

envelope = {"success": False, "output": "", "error": None, "result": None}
try:
    import joblib
    import numpy as np
    import pandas as pd

    with open(%s) as f:
        ctx = json.load(f)
    df = pd.DataFrame(ctx["rows"], columns=ctx["columns"])
    bundle = joblib.load(io.BytesIO(base64.b64decode(ctx["params"]["serialized_state"])))

    feature_columns = bundle["feature_columns"]
    missing = [c for c in feature_columns if c not in df.columns]
    if missing:
        raise ValueError("missing feature columns: " + ", ".join(missing))

    raw = df[feature_columns].apply(pd.to_numeric, errors="coerce")
    X = bundle["imputer"].transform(raw)
    X = bundle["scaler"].transform(X)

    model = bundle["model"]
    if not hasattr(model, "predict"):
        raise TypeError("stored model does not support prediction")
    preds = model.predict(X)
    if bundle.get("label_encoder") is not None:
        preds = bundle["label_encoder"].inverse_transform(np.asarray(preds).astype(int))

    envelope["result"] = {"predictions": np.asarray(preds).tolist()}
    envelope["success"] = True
except Exception:
    envelope["error"] = traceback.format_exc()
finally:
    with open(%s, "w") as f:
        json.dump(envelope, f)
`, pyLiteral(DataFileName), pyLiteral(ResultFileName))
}

// BuildAutoMLScript emits a single script that trains every candidate in one
// interpreter invocation, under a wall-clock budget checked between
// candidates. A candidate whose import or fit raises is skipped; only the
// winner's bundle is serialized.
func (b *ScriptBuilder) BuildAutoMLScript(req *models.AutoMLRequest, algorithms []string) (string, error) {
	if _, ok := algorithmCatalog[req.TaskType]; !ok {
		return "", models.NewValidationError("task_type", fmt.Sprintf("unknown task type %q", req.TaskType))
	}
	if len(algorithms) == 0 {
		return "", models.NewValidationError("algorithms", "candidate list is empty")
	}

	var builders, entries []string
	for i, algo := range algorithms {
		spec, err := lookupAlgorithm(req.TaskType, algo)
		if err != nil {
			return "", err
		}
		builders = append(builders, fmt.Sprintf(`    def _candidate_%d():
        %s
        return %s(%s)`, i, spec.Import, spec.Class, pyKwargs(spec.Defaults, nil)))
		entries = append(entries, fmt.Sprintf("        (%s, _candidate_%d, %s),", pyLiteral(algo), i, pyLiteral(toGenericMap(spec.Defaults))))
	}

	budgetSeconds := float64(req.TimeBudgetMs) / 1000.0
	if budgetSeconds <= 0 {
		budgetSeconds = 120
	}
	testFraction := req.TestFraction
	if testFraction <= 0 || testFraction >= 1 {
		testFraction = 0.2
	}

	var evalBlock string
	if req.TaskType == models.TaskClustering {
		evalBlock = `            labels = np.asarray(model.fit_predict(X))
            clusters = set(int(l) for l in labels if int(l) != -1)
            performance = {"nClusters": float(len(clusters))}
            if len(clusters) > 1:
                performance["silhouette"] = float(silhouette_score(X, labels))
                score = performance["silhouette"]
            else:
                score = -1.0`
	} else if req.TaskType == models.TaskClassification {
		evalBlock = `            model.fit(X_train, y_train)
            y_pred = model.predict(X_test)
            performance = {
                "accuracy": float(accuracy_score(y_test, y_pred)),
                "f1Score": float(f1_score(y_test, y_pred, average="weighted", zero_division=0)),
            }
            score = performance["accuracy"]`
	} else {
		evalBlock = `            model.fit(X_train, y_train)
            y_pred = model.predict(X_test)
            mse = float(mean_squared_error(y_test, y_pred))
            performance = {
                "mse": mse,
                "rmse": float(np.sqrt(mse)),
                "r2Score": float(r2_score(y_test, y_pred)),
            }
            score = performance["r2Score"]`
	}

	var metricsImport, prepBlock string
	if req.TaskType == models.TaskClustering {
		metricsImport = "from sklearn.metrics import silhouette_score"
		prepBlock = ""
	} else {
		if req.TaskType == models.TaskClassification {
			metricsImport = "from sklearn.metrics import accuracy_score, f1_score"
		} else {
			metricsImport = "from sklearn.metrics import mean_squared_error, r2_score"
		}
		encode := `    y = pd.to_numeric(y, errors="coerce").fillna(0).values
`
		if req.TaskType == models.TaskClassification {
			encode = `    if y.dtype == object or str(y.dtype).startswith("str"):
        label_encoder = LabelEncoder()
        y = label_encoder.fit_transform(y.astype(str))
    else:
        y = pd.to_numeric(y, errors="coerce").fillna(0).values
`
		}
		prepBlock = fmt.Sprintf(`    y = df[%s]
%s    X_train, X_test, y_train, y_test = train_test_split(
        X, y, test_size=%s, random_state=42)
`, pyLiteral(req.TargetColumn), encode, pyLiteral(testFraction))
	}

	return fmt.Sprintf(`import base64
import io
import json
import time
import traceback

envelope = {"success": False, "output": "", "error": None, "result": None}
try:
    import joblib
    import numpy as np
    import pandas as pd
    from sklearn.impute import SimpleImputer
    from sklearn.model_selection import train_test_split
    from sklearn.preprocessing import LabelEncoder, StandardScaler
    %s

    deadline = time.time() + %s

    with open(%s) as f:
        ctx = json.load(f)
    df = pd.DataFrame(ctx["rows"], columns=ctx["columns"])
    feature_columns = %s

    raw = df[feature_columns].apply(pd.to_numeric, errors="coerce")
    imputer = SimpleImputer(strategy="mean")
    imputed = imputer.fit_transform(raw)
    scaler = StandardScaler()
    X = scaler.fit_transform(imputed)

    label_encoder = None
%s

%s

    candidates = [
%s
    ]

    leaderboard = []
    best = None
    for name, build, hp in candidates:
        if time.time() > deadline:
            break
        try:
            model = build()
%s
        except Exception:
            continue
        leaderboard.append({
            "algorithm": name,
            "score": score,
            "hyperparameters": hp,
            "performance": performance,
        })
        if best is None or score > best["score"]:
            best = {
                "algorithm": name,
                "score": score,
                "performance": performance,
                "model": model,
            }

    if best is None:
        raise RuntimeError("no candidate algorithm completed within the time budget")
    leaderboard.sort(key=lambda e: e["score"], reverse=True)

    model = best["model"]
    importances = None
    if hasattr(model, "feature_importances_"):
        importances = np.asarray(model.feature_importances_, dtype=float)
    elif hasattr(model, "coef_"):
        coef = np.asarray(model.coef_, dtype=float)
        importances = np.abs(coef).reshape(-1, len(feature_columns)).mean(axis=0)
    feature_importance = None
    if importances is not None:
        total = float(importances.sum())
        if total > 0:
            importances = importances / total
        feature_importance = sorted(
            [{"feature": c, "importance": float(v)} for c, v in zip(feature_columns, importances)],
            key=lambda e: e["importance"], reverse=True)

    buf = io.BytesIO()
    joblib.dump({
        "model": model,
        "imputer": imputer,
        "scaler": scaler,
        "label_encoder": label_encoder,
        "feature_columns": feature_columns,
    }, buf)
    serialized = base64.b64encode(buf.getvalue()).decode("ascii")

    envelope["result"] = {
        "best_algorithm": best["algorithm"],
        "best_score": best["score"],
        "leaderboard": leaderboard,
        "feature_importance": feature_importance,
        "performance": best["performance"],
        "serialized_state": serialized,
    }
    envelope["success"] = True
except Exception:
    envelope["error"] = traceback.format_exc()
finally:
    with open(%s, "w") as f:
        json.dump(envelope, f)
`,
		metricsImport,
		pyLiteral(budgetSeconds),
		pyLiteral(DataFileName),
		pyLiteral(req.FeatureColumns),
		prepBlock,
		strings.Join(builders, "\n\n"),
		strings.Join(entries, "\n"),
		evalBlock,
		pyLiteral(ResultFileName),
	), nil
}

func toGenericMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
