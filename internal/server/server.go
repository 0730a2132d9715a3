package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"pitstop/internal/domain"
	"pitstop/internal/engine"
	"pitstop/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"work order SRV-1a2b3c4d cannot move from OPEN to COMPLETED"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"current_status\":\"OPEN\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Pitstop API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the required envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Pitstop API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerVehicles(group, cfg.Engine)
	registerWorkOrders(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ite engine.InvalidTransitionError
	if errors.As(err, &ite) {
		return newAPIError(http.StatusBadRequest, "invalid_transition", err.Error(), map[string]any{"current_status": ite.Current})
	}
	var abe engine.AlreadyBookedError
	if errors.As(err, &abe) {
		return newAPIError(http.StatusConflict, "vehicle_already_booked", err.Error(), map[string]any{"vehicle_id": abe.VehicleID})
	}
	var ce engine.ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "unique constraint"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func bodyBytes(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyBytesKey{}).([]byte)
	return b
}

var lifecycleErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusInternalServerError,
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerVehicles(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-vehicle",
		Method:        http.MethodPost,
		Path:          "/vehicles",
		Summary:       "Register vehicle",
		DefaultStatus: http.StatusCreated,
		Errors:        lifecycleErrors,
	}, func(ctx context.Context, input *struct {
		Body RegisterVehicleRequest `json:"body"`
	}) (*struct {
		Body VehicleResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleCustomer, RoleManager)
		if authErr != nil {
			return nil, authErr
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		ownerID := input.Body.OwnerID
		if p.Role == RoleCustomer {
			// Customers register vehicles for themselves only.
			ownerID = p.ActorID
		}
		if ownerID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "owner_id is required", nil)
		}
		v, err := e.RegisterVehicle(ctx, domain.Vehicle{
			OwnerID:            ownerID,
			RegistrationNumber: strings.TrimSpace(input.Body.RegistrationNumber),
			VIN:                strings.TrimSpace(input.Body.VIN),
			Make:               input.Body.Make,
			Model:              input.Body.Model,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VehicleResponse `json:"body"`
		}{Body: vehicleResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-vehicles",
		Method:      http.MethodGet,
		Path:        "/vehicles",
		Summary:     "List vehicles",
		Errors:      lifecycleErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []VehicleResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ownerFilter := ""
		if p.Role == RoleCustomer {
			ownerFilter = p.ActorID
		}
		items, err := e.Repo.ListVehicles(ctx, ownerFilter)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []VehicleResponse `json:"body"`
		}{Body: mapVehicles(items)}, nil
	})
}

func registerWorkOrders(api huma.API, e engine.Engine) {
	type orderPath struct {
		ServiceOrderID string `path:"service_order_id"`
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-booking",
		Method:        http.MethodPost,
		Path:          "/workorders",
		Summary:       "Book vehicle for service",
		DefaultStatus: http.StatusCreated,
		Errors:        lifecycleErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateBookingRequest `json:"body"`
	}) (*struct {
		Body WorkOrderResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleCustomer, RoleManager)
		if authErr != nil {
			return nil, authErr
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		customerID := input.Body.CustomerID
		if p.Role == RoleCustomer {
			customerID = p.ActorID
		}
		if customerID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "customer_id is required", nil)
		}
		if input.Body.VehicleID == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "vehicle_id is required", nil)
		}
		scheduledAt := ""
		if input.Body.ScheduledAt != nil {
			scheduledAt = *input.Body.ScheduledAt
		}
		wo, err := e.CreateBooking(ctx, engine.BookingOptions{
			CustomerID:  customerID,
			VehicleID:   input.Body.VehicleID,
			Description: input.Body.Description,
			ScheduledAt: scheduledAt,
			ActorID:     p.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkOrderResponse `json:"body"`
		}{Body: workOrderResponse(wo)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-open-workorders",
		Method:      http.MethodGet,
		Path:        "/workorders/open",
		Summary:     "List open work orders",
		Errors:      lifecycleErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []WorkOrderResponse `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, RoleManager); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListWorkOrdersByStatus(ctx, domain.StatusOpen)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []WorkOrderResponse `json:"body"`
		}{Body: mapWorkOrders(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-assigned-workorders",
		Method:      http.MethodGet,
		Path:        "/workorders/assigned",
		Summary:     "List work orders assigned to the calling mechanic",
		Errors:      lifecycleErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []WorkOrderResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleMechanic)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListWorkOrdersByMechanic(ctx, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []WorkOrderResponse `json:"body"`
		}{Body: mapWorkOrders(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-my-workorders",
		Method:      http.MethodGet,
		Path:        "/workorders/mine",
		Summary:     "Service status for the calling customer's vehicles",
		Errors:      lifecycleErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.ServiceStatus `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleCustomer)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ServiceStatusForCustomer(ctx, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ServiceStatus `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workorder",
		Method:      http.MethodGet,
		Path:        "/workorders/{service_order_id}",
		Summary:     "Get work order",
		Errors:      lifecycleErrors,
	}, func(ctx context.Context, input *orderPath) (*struct {
		Body WorkOrderResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx)
		if authErr != nil {
			return nil, authErr
		}
		wo, err := e.Repo.GetWorkOrderByServiceOrderID(ctx, input.ServiceOrderID)
		if err != nil {
			return nil, handleError(fmt.Errorf("work order %s: %w", input.ServiceOrderID, err))
		}
		if p.Role == RoleCustomer {
			// A customer only sees orders for vehicles they own.
			if _, err := e.Repo.GetVehicleForOwner(ctx, wo.VehicleID, p.ActorID); err != nil {
				return nil, handleError(fmt.Errorf("work order %s: %w", input.ServiceOrderID, repo.ErrNotFound))
			}
		}
		return &struct {
			Body WorkOrderResponse `json:"body"`
		}{Body: workOrderResponse(wo)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-manager",
		Method:      http.MethodPost,
		Path:        "/workorders/{service_order_id}/assign-manager",
		Summary:     "Assign service manager",
		Errors:      lifecycleErrors,
	}, func(ctx context.Context, input *struct {
		ServiceOrderID string               `path:"service_order_id"`
		Body           AssignManagerRequest `json:"body"`
	}) (*struct {
		Body WorkOrderResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleManager)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.ManagerID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "manager_id is required", nil)
		}
		wo, err := e.AssignManager(ctx, input.ServiceOrderID, input.Body.ManagerID, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkOrderResponse `json:"body"`
		}{Body: workOrderResponse(wo)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-mechanic",
		Method:      http.MethodPost,
		Path:        "/workorders/{service_order_id}/assign-mechanic",
		Summary:     "Assign mechanic",
		Errors:      lifecycleErrors,
	}, func(ctx context.Context, input *struct {
		ServiceOrderID string                `path:"service_order_id"`
		Body           AssignMechanicRequest `json:"body"`
	}) (*struct {
		Body WorkOrderResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleManager)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.MechanicID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "mechanic_id is required", nil)
		}
		wo, err := e.AssignMechanic(ctx, input.ServiceOrderID, input.Body.MechanicID, input.Body.EstimatedCost, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkOrderResponse `json:"body"`
		}{Body: workOrderResponse(wo)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-workorder",
		Method:      http.MethodPost,
		Path:        "/workorders/{service_order_id}/start",
		Summary:     "Start service",
		Errors:      lifecycleErrors,
	}, func(ctx context.Context, input *orderPath) (*struct {
		Body WorkOrderResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleMechanic, RoleManager)
		if authErr != nil {
			return nil, authErr
		}
		wo, err := e.Start(ctx, input.ServiceOrderID, mechanicScope(p), p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkOrderResponse `json:"body"`
		}{Body: workOrderResponse(wo)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-workorder",
		Method:      http.MethodPost,
		Path:        "/workorders/{service_order_id}/complete",
		Summary:     "Complete service",
		Errors:      lifecycleErrors,
	}, func(ctx context.Context, input *struct {
		ServiceOrderID string          `path:"service_order_id"`
		Body           CompleteRequest `json:"body"`
	}) (*struct {
		Body WorkOrderResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleMechanic, RoleManager)
		if authErr != nil {
			return nil, authErr
		}
		wo, err := e.Complete(ctx, engine.CompleteOptions{
			ServiceOrderID: input.ServiceOrderID,
			MechanicID:     mechanicScope(p),
			FinalCost:      input.Body.FinalCost,
			ServiceDetails: input.Body.ServiceDetails,
			EvidenceURL:    input.Body.EvidenceURL,
			ActorID:        p.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkOrderResponse `json:"body"`
		}{Body: workOrderResponse(wo)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-workorder-costs",
		Method:      http.MethodPatch,
		Path:        "/workorders/{service_order_id}/costs",
		Summary:     "Update costs",
		Errors:      lifecycleErrors,
	}, func(ctx context.Context, input *struct {
		ServiceOrderID string             `path:"service_order_id"`
		Body           UpdateCostsRequest `json:"body"`
	}) (*struct {
		Body WorkOrderResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleManager)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.EstimatedCost == nil && input.Body.FinalCost == nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "estimated_cost or final_cost is required", nil)
		}
		wo, err := e.UpdateCosts(ctx, input.ServiceOrderID, input.Body.EstimatedCost, input.Body.FinalCost, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkOrderResponse `json:"body"`
		}{Body: workOrderResponse(wo)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-workorder",
		Method:      http.MethodPost,
		Path:        "/workorders/{service_order_id}/cancel",
		Summary:     "Cancel work order",
		Errors:      lifecycleErrors,
	}, func(ctx context.Context, input *orderPath) (*struct {
		Body WorkOrderResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleCustomer, RoleManager)
		if authErr != nil {
			return nil, authErr
		}
		if p.Role == RoleCustomer {
			wo, err := e.Repo.GetWorkOrderByServiceOrderID(ctx, input.ServiceOrderID)
			if err != nil {
				return nil, handleError(fmt.Errorf("work order %s: %w", input.ServiceOrderID, err))
			}
			if _, err := e.Repo.GetVehicleForOwner(ctx, wo.VehicleID, p.ActorID); err != nil {
				return nil, handleError(fmt.Errorf("work order %s: %w", input.ServiceOrderID, repo.ErrNotFound))
			}
		}
		wo, err := e.Cancel(ctx, input.ServiceOrderID, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkOrderResponse `json:"body"`
		}{Body: workOrderResponse(wo)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "append-workorder-progress",
		Method:      http.MethodPost,
		Path:        "/workorders/{service_order_id}/progress",
		Summary:     "Append progress note",
		Errors:      lifecycleErrors,
	}, func(ctx context.Context, input *struct {
		ServiceOrderID string          `path:"service_order_id"`
		Body           ProgressRequest `json:"body"`
	}) (*struct {
		Body WorkOrderResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleMechanic, RoleManager)
		if authErr != nil {
			return nil, authErr
		}
		wo, err := e.AppendProgress(ctx, input.ServiceOrderID, mechanicScope(p), input.Body.Note, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkOrderResponse `json:"body"`
		}{Body: workOrderResponse(wo)}, nil
	})
}

// mechanicScope narrows mechanic calls to their own assignments; managers
// see every order.
func mechanicScope(p Principal) string {
	if p.Role == RoleMechanic {
		return p.ActorID
	}
	return ""
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List audit events",
		Errors:      lifecycleErrors,
	}, func(ctx context.Context, input *struct {
		ServiceOrderID string `query:"service_order_id"`
		Limit          int    `query:"limit"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, RoleManager); authErr != nil {
			return nil, authErr
		}
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 100
		}
		items, err := e.Repo.ListEvents(ctx, input.ServiceOrderID, limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Pitstop API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or the legacy X-Actor-Id header.
    </p>
  </body>
</html>`, specURL)
}
