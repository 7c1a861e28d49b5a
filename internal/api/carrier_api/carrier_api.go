package carrier_api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BearBump/CarrierBox/internal/models"
	"github.com/BearBump/CarrierBox/internal/services/integration"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// maxLabelUpload bounds the multipart body of /shipment/label/create.
const maxLabelUpload = 10 << 20

type Service interface {
	Authenticate(ctx context.Context, username, password string) (integration.TokenResponse, error)
	FindAccount(ctx context.Context, token string) (models.Account, error)
	Logout(ctx context.Context, token string) (string, error)
	AddShipment(ctx context.Context, token string, sh models.Shipment) (models.Shipment, error)
	GetShipment(ctx context.Context, token, shipmentID string) (models.Shipment, error)
	GetShipments(ctx context.Context, token string) ([]models.Shipment, error)
	AddShipmentLabel(ctx context.Context, token, shipmentID string, file *integration.LabelFile) (models.ShipmentLabel, error)
	GetShipmentLabels(ctx context.Context, token, trackingNumber string) ([]models.ShipmentLabel, error)
	GetShipmentLabelsByShipmentID(ctx context.Context, token, shipmentID string) ([]models.ShipmentLabel, error)
}

type CarrierAPI struct {
	svc Service
}

func New(svc Service) *CarrierAPI {
	return &CarrierAPI{svc: svc}
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type logoutRequest struct {
	Token string `json:"token"`
}

type addShipmentRequest struct {
	Shipment models.Shipment `json:"shipment"`
}

type shipmentLabelsRequest struct {
	Token          string `json:"token"`
	TrackingNumber string `json:"trackingNumber"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Register mounts the carrier routes on r.
func (a *CarrierAPI) Register(r chi.Router) {
	r.Post("/auth/token", a.authToken)
	r.Post("/logout", a.logout)
	r.Get("/account", a.account)

	r.Post("/shipment/add", a.addShipment)
	r.Get("/shipments", a.shipments)
	r.Get("/shipment/{shipmentId}", a.shipment)

	r.Post("/shipment/labels", a.shipmentLabels)
	r.Get("/shipment/{shipmentId}/labels", a.shipmentLabelsByID)
	r.Post("/shipment/label/create", a.createLabel)
}

func (a *CarrierAPI) authToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := a.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *CarrierAPI) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token := req.Token
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		writeUnauthorized(w)
		return
	}
	msg, err := a.svc.Logout(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (a *CarrierAPI) account(w http.ResponseWriter, r *http.Request) {
	token, ok := requireBearer(w, r)
	if !ok {
		return
	}
	acc, err := a.svc.FindAccount(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (a *CarrierAPI) addShipment(w http.ResponseWriter, r *http.Request) {
	token, ok := requireBearer(w, r)
	if !ok {
		return
	}
	var req addShipmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sh, err := a.svc.AddShipment(r.Context(), token, req.Shipment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (a *CarrierAPI) shipments(w http.ResponseWriter, r *http.Request) {
	token, ok := requireBearer(w, r)
	if !ok {
		return
	}
	list, err := a.svc.GetShipments(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *CarrierAPI) shipment(w http.ResponseWriter, r *http.Request) {
	token, ok := requireBearer(w, r)
	if !ok {
		return
	}
	sh, err := a.svc.GetShipment(r.Context(), token, chi.URLParam(r, "shipmentId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (a *CarrierAPI) shipmentLabels(w http.ResponseWriter, r *http.Request) {
	var req shipmentLabelsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token := bearerToken(r)
	if token == "" {
		token = req.Token
	}
	if token == "" {
		writeUnauthorized(w)
		return
	}
	labels, err := a.svc.GetShipmentLabels(r.Context(), token, req.TrackingNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, labels)
}

func (a *CarrierAPI) shipmentLabelsByID(w http.ResponseWriter, r *http.Request) {
	token, ok := requireBearer(w, r)
	if !ok {
		return
	}
	labels, err := a.svc.GetShipmentLabelsByShipmentID(r.Context(), token, chi.URLParam(r, "shipmentId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, labels)
}

func (a *CarrierAPI) createLabel(w http.ResponseWriter, r *http.Request) {
	token, ok := requireBearer(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLabelUpload)
	if err := r.ParseMultipartForm(maxLabelUpload); err != nil {
		writeError(w, errors.Wrap(integration.ErrValidation, "invalid multipart form"))
		return
	}
	shipmentID := r.FormValue("shipmentId")
	if shipmentID == "" {
		writeError(w, errors.Wrap(integration.ErrValidation, "Shipment ID is required"))
		return
	}

	var file *integration.LabelFile
	f, hdr, err := r.FormFile("labelFile")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		writeError(w, errors.Wrap(integration.ErrValidation, "invalid labelFile"))
		return
	default:
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			writeError(w, errors.Wrap(err, "read labelFile"))
			return
		}
		file = &integration.LabelFile{Data: data, ContentType: hdr.Header.Get("Content-Type")}
	}

	label, err := a.svc.AddShipmentLabel(r.Context(), token, shipmentID, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, label)
}

// bearerToken returns the token from "Authorization: Bearer <token>", or "".
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

func requireBearer(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := bearerToken(r)
	if token == "" {
		writeUnauthorized(w)
		return "", false
	}
	return token, true
}

// decodeJSON treats an empty body as an empty object.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(integration.ErrValidation, "invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
}

var statusBySentinel = []struct {
	err    error
	status int
}{
	{integration.ErrValidation, http.StatusBadRequest},
	{integration.ErrUnauthorized, http.StatusUnauthorized},
	{integration.ErrNotFound, http.StatusNotFound},
	{integration.ErrRateLimited, http.StatusTooManyRequests},
}

func writeError(w http.ResponseWriter, err error) {
	for _, m := range statusBySentinel {
		if errors.Is(err, m.err) {
			msg := strings.TrimSuffix(err.Error(), ": "+m.err.Error())
			writeJSON(w, m.status, errorResponse{Error: msg})
			return
		}
	}
	slog.Error("request failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
