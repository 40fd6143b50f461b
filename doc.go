// Package mindscope is a small depression risk service for student survey
// data. It trains a random forest, a logistic regression and a gradient
// boosted tree ensemble once at startup and serves their predictions,
// held-out metrics and a dataset summary over HTTP.
//
// # Layout
//
//   - cmd/mindscope: entry point
//   - internal/config: YAML, .env and environment configuration
//   - internal/dataset: loading, cleaning, median imputation and summary
//   - internal/registry: startup training and the prediction contract
//   - internal/server: chi router, middleware and handlers
//   - core/frame: column table shared by loading and preprocessing
//   - core/model: estimator interfaces and fitted-state bookkeeping
//   - core/parallel: bounded parallel loops
//   - preprocessing: scaler, PCA, one-hot encoder and column transformer
//   - sklearn/tree, sklearn/ensemble, sklearn/linear_model, sklearn/xgboost: classifiers
//   - sklearn/pipeline: preprocessor plus classifier
//   - model_selection: stratified train/test split
//   - metrics: binary classification metrics
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// # Quick Start
//
//	go run ./cmd/mindscope -config configs/config.yaml
//	curl -s localhost:8000/models
//	curl -s -X POST localhost:8000/predict -d '{"model_id":"XGBoost","features":{...}}'
package mindscope
