package server

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/YuminosukeSato/mindscope/internal/registry"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

const maxBodyBytes = 1 << 20

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	ModelID  string         `json:"model_id" validate:"required"`
	Features map[string]any `json:"features" validate:"required"`
}

// PredictResponse is the body of a successful prediction.
type PredictResponse struct {
	Probability float64 `json:"probability"`
	Prediction  string  `json:"prediction"`
}

// fieldError mirrors one entry of a 422 detail list.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"run_id": s.registry.RunID(),
		"models": s.registry.IDs(),
	})
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if errs := decodePredict(r, &req); len(errs) > 0 {
		writeDetail(w, http.StatusUnprocessableEntity, errs)
		return
	}

	res := s.registry.Predict(req.ModelID, req.Features)
	switch res.Kind {
	case registry.OK:
		writeJSON(w, http.StatusOK, PredictResponse{Probability: res.Probability, Prediction: res.Prediction})
	case registry.NotFound:
		writeDetail(w, http.StatusNotFound, "Model not found")
	default:
		writeDetail(w, http.StatusInternalServerError, res.Err.Error())
	}
}

// decodePredict returns the 422 detail entries, nil when the body is usable.
func decodePredict(r *http.Request, req *PredictRequest) []fieldError {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "body_error"}}
	}
	if err := json.Unmarshal(body, req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return []fieldError{{Loc: []string{"body", typeErr.Field}, Msg: "expected " + typeErr.Type.String(), Type: "type_error"}}
		}
		return []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "json_invalid"}}
	}

	err = getValidator().Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldError{Loc: []string{"body", fe.Field()}, Msg: "Field required", Type: "missing"})
	}
	return out
}

func (s *Server) listModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) modelMetrics(w http.ResponseWriter, r *http.Request) {
	m, ok := s.registry.Metrics(chi.URLParam(r, "model_id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Model not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) importanceChart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "model_id")
	m, ok := s.registry.Metrics(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Model not found")
		return
	}
	if len(m.FeatureImportance) == 0 {
		writeDetail(w, http.StatusNotFound, "Feature importance not available")
		return
	}
	var png []byte
	err := errors.SafeExecute("renderImportance", func() error {
		var err error
		png, err = renderImportance(id, m.FeatureNames, m.FeatureImportance)
		return err
	})
	if err != nil {
		s.logger.Error("render importance chart", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) datasetSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Summary())
}

func (s *Server) notFound(w http.ResponseWriter, _ *http.Request) {
	writeDetail(w, http.StatusNotFound, "Not Found")
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}
