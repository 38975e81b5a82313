package http

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"custseg/dashboard"
	"custseg/ml"
)

// form keys that carry page state rather than features
var pageStateKeys = map[string]bool{"country": true, "page": true}

// handlePredict maps the submitted form onto the feature schema and reports one cluster label.
// Input problems are shown verbatim with 422; anything else is a 500.
func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "malformed form data", http.StatusBadRequest)
		return
	}

	country := r.PostForm.Get("country")
	page, _ := strconv.Atoi(r.PostForm.Get("page"))
	frame, values, problems := parseFeatureForm(r.PostForm)

	status := http.StatusOK
	var result *notice
	if len(problems) > 0 {
		status = http.StatusUnprocessableEntity
		result = &notice{Message: (&ml.ValidationError{Problems: problems}).Error()}
	} else {
		label, err := h.app.Predictor.Predict(r.Context(), frame)
		var invalid *ml.ValidationError
		switch {
		case errors.As(err, &invalid):
			status = http.StatusUnprocessableEntity
			result = &notice{Message: invalid.Error()}
		case err != nil:
			h.serverError(w, r, err)
			return
		default:
			result = &notice{Success: true, Message: fmt.Sprintf("Predicted cluster: %d", label)}
		}
	}

	data, err := h.buildPage(r.Context(), country, page, values)
	if errors.Is(err, dashboard.ErrUnknownCountry) {
		data, err = h.buildPage(r.Context(), "", page, values)
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	data.Notice = result
	h.render(w, r, status, data)
}

// parseFeatureForm turns every non page-state field into a frame column. Values that
// are not numbers are reported here; the schema checks the rest.
func parseFeatureForm(form map[string][]string) (ml.Frame, map[string]string, []string) {
	keys := make([]string, 0, len(form))
	for key := range form {
		if !pageStateKeys[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var frame ml.Frame
	var problems []string
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		for _, raw := range form[key] {
			raw = strings.TrimSpace(raw)
			values[key] = raw
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				problems = append(problems, fmt.Sprintf("feature %q must be a number, got %q", key, raw))
				continue
			}
			frame.Add(key, v)
		}
	}
	return frame, values, problems
}
