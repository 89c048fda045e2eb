package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// Query binding goes through the oapi-codegen runtime so parameter parsing
// matches the styles declared in openapi.yaml.

func bindQueryString(r *http.Request, name, def string) (string, error) {
	if !r.URL.Query().Has(name) {
		return def, nil
	}
	var out string
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &out); err != nil {
		return def, err
	}
	return out, nil
}

func bindQueryBool(r *http.Request, name string, def bool) (bool, error) {
	if !r.URL.Query().Has(name) {
		return def, nil
	}
	var out bool
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &out); err != nil {
		return def, err
	}
	return out, nil
}

func bindQueryInt(r *http.Request, name string, def int) (int, error) {
	if !r.URL.Query().Has(name) {
		return def, nil
	}
	var out int
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &out); err != nil {
		return def, err
	}
	return out, nil
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
