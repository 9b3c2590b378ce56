package graphql

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
)

// GraphQLRequest represents a GraphQL HTTP request
type GraphQLRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// GraphQLResponse represents a GraphQL HTTP response
type GraphQLResponse struct {
	Data   any            `json:"data,omitempty"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// GraphQLError represents a GraphQL error
type GraphQLError struct {
	Message string `json:"message"`
}

// GraphQLHandler handles GraphQL HTTP requests. CORS is left to the API's
// middleware chain.
type GraphQLHandler struct {
	schema   graphql.Schema
	maxDepth int
}

// NewGraphQLHandler creates a handler enforcing maxDepth; zero selects
// DefaultMaxDepth
func NewGraphQLHandler(schema graphql.Schema, maxDepth int) *GraphQLHandler {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &GraphQLHandler{schema: schema, maxDepth: maxDepth}
}

// Execute runs one operation with the request's context
func (h *GraphQLHandler) Execute(r *http.Request, req GraphQLRequest) *GraphQLResponse {
	if err := ValidateQueryDepth(req.Query, h.maxDepth); err != nil {
		return &GraphQLResponse{Errors: []GraphQLError{{Message: err.Error()}}}
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})

	response := &GraphQLResponse{Data: result.Data}
	if result.HasErrors() {
		response.Errors = make([]GraphQLError, len(result.Errors))
		for i, err := range result.Errors {
			response.Errors[i] = GraphQLError{Message: err.Message}
		}
		logging.FromContext(r.Context()).Debug("graphql operation failed",
			logging.String("operation", req.OperationName),
			logging.String("error", result.Errors[0].Message))
	}
	return response
}

// ServeHTTP handles POST requests carrying a GraphQLRequest body
func (h *GraphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeErrors(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req GraphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeErrors(w, http.StatusBadRequest, "query is required")
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.Execute(r, req))
}

func writeErrors(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(GraphQLResponse{Errors: []GraphQLError{{Message: message}}})
}
