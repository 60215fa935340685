package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vytor/cardsched/internal/errors"
	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/sched"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode response: %v", err)
	}
}

// decodeJSON reads the request body into dst and validates its struct tags.
// An empty body leaves dst at its zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.NewBadRequestError("invalid JSON body: " + err.Error())
	}
	if err := requestValidator().Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 {
			return errors.NewValidationError(verrs[0].Field(), "failed "+verrs[0].Tag())
		}
		return errors.NewBadRequestError(err.Error())
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewBadRequestError("invalid deck id: " + raw)
	}
	return id, nil
}

// formatCount renders a queue count, marking counts that hit the query cap.
func formatCount(n int) string {
	if n >= sched.ReportLimit {
		return strconv.Itoa(sched.ReportLimit) + "+"
	}
	return strconv.Itoa(n)
}

type countsResponse struct {
	New      string `json:"new"`
	Learning string `json:"learning"`
	Review   string `json:"review"`
}

func newCountsResponse(c models.Counts) countsResponse {
	return countsResponse{
		New:      formatCount(c.New),
		Learning: formatCount(c.Learning),
		Review:   formatCount(c.Review),
	}
}
