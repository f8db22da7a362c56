// Package retrieve fans a model-planned set of data-source calls out to
// SQL databases, REST APIs and vector search, and collects the results
// for prompt assembly.
package retrieve

import "context"

// Source is a single retrievable data source.
type Source interface {
	// ID identifies the source in plans and fetch results.
	ID() string

	// Describe returns a short description of the source, shown to the
	// model when it plans which sources to call.
	Describe() string

	// Fetch executes one planned call against the source.
	Fetch(ctx context.Context, call Call) (string, error)
}

// Call is one planner-emitted source invocation. Which fields are set
// depends on the kind of source the call targets.
type Call struct {
	// ResourceID names the source to call.
	ResourceID string `json:"resource_id" jsonschema:"required,description=ID of the resource to fetch from"`

	// Query is the SQL to run against a database source.
	Query string `json:"query,omitempty" jsonschema:"description=SQL SELECT statement for database resources"`

	// InputData is the text a vector-search source embeds and searches.
	InputData string `json:"input_data,omitempty" jsonschema:"description=Query text for vectorized knowledge resources"`

	// Placeholders fill {name} segments of a REST source's URL.
	Placeholders map[string]string `json:"placeholders,omitempty" jsonschema:"description=URL placeholder values for REST resources"`

	// QueryParams are appended to a REST source's URL.
	QueryParams map[string]string `json:"query_params,omitempty" jsonschema:"description=Query parameters for REST resources"`

	// Payload is the JSON body of a REST POST.
	Payload map[string]any `json:"payload,omitempty" jsonschema:"description=JSON body for REST POST resources"`

	// Arguments are passed through to tool-backed sources.
	Arguments map[string]any `json:"arguments,omitempty" jsonschema:"description=Arguments for tool-backed resources"`
}

// Plan is the set of source calls a planning completion asked for.
type Plan struct {
	// RealtimeResources are calls against SQL and REST sources.
	RealtimeResources []Call `json:"realtime_resources" jsonschema:"description=Calls against realtime database or REST resources"`

	// VectorizationResources are calls against vector-search sources.
	VectorizationResources []Call `json:"vectorization_resources" jsonschema:"description=Calls against vectorized knowledge resources"`
}

// Calls returns every call in the plan, realtime resources first.
func (p Plan) Calls() []Call {
	calls := make([]Call, 0, len(p.RealtimeResources)+len(p.VectorizationResources))
	calls = append(calls, p.RealtimeResources...)
	calls = append(calls, p.VectorizationResources...)
	return calls
}

// Empty reports whether the plan contains no calls.
func (p Plan) Empty() bool {
	return len(p.RealtimeResources) == 0 && len(p.VectorizationResources) == 0
}
