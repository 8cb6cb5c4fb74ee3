// Package assertion implements the assertion engine: applying suite+case
// assertions to a case's final output and tool-call trace. Grounded on the
// teacher's features/policy/basic/engine.go for the "merge then evaluate an
// ordered rule list, each rule producing zero or more typed failures" shape,
// adapted from policy allow/deny decisions to assertion pass/fail reports.
package assertion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

// Type discriminates the five assertion shapes.
type Type string

const (
	TypeRequiredFields Type = "required_fields"
	TypeJSONSchema     Type = "json_schema"
	TypeMustCall       Type = "must_call"
	TypeMustNotCall    Type = "must_not_call"
	TypeCallOrder      Type = "call_order"
)

// Spec is a tagged-variant assertion specification, matching the suite/case
// config shape: only the fields relevant to Type are populated.
type Spec struct {
	Type Type

	Fields     []string // required_fields
	SchemaPath string   // json_schema
	Tools      []string // must_call, must_not_call, call_order (order)
}

// Failure is one assertion rule violation.
type Failure struct {
	Type    Type
	Message string
	Details map[string]any
}

// Evaluate merges suite assertions (first) with case assertions (appended)
// and evaluates them in order against output and the observed tool-call
// names (in call order). suiteDir is the base directory json_schema paths
// resolve against.
func Evaluate(suiteAssertions, caseAssertions []Spec, output map[string]any, toolCalls []string, suiteDir string) []Failure {
	merged := make([]Spec, 0, len(suiteAssertions)+len(caseAssertions))
	merged = append(merged, suiteAssertions...)
	merged = append(merged, caseAssertions...)

	var failures []Failure
	for _, spec := range merged {
		failures = append(failures, evaluateOne(spec, output, toolCalls, suiteDir)...)
	}
	return failures
}

func evaluateOne(spec Spec, output map[string]any, toolCalls []string, suiteDir string) []Failure {
	switch spec.Type {
	case TypeRequiredFields:
		return evalRequiredFields(spec, output)
	case TypeJSONSchema:
		return evalJSONSchema(spec, output, suiteDir)
	case TypeMustCall:
		return evalMustCall(spec, toolCalls)
	case TypeMustNotCall:
		return evalMustNotCall(spec, toolCalls)
	case TypeCallOrder:
		return evalCallOrder(spec, toolCalls)
	default:
		return []Failure{{
			Type:    "unknown_assertion",
			Message: fmt.Sprintf("unknown assertion type %q", spec.Type),
		}}
	}
}

func evalRequiredFields(spec Spec, output map[string]any) []Failure {
	if len(spec.Fields) == 0 {
		return []Failure{{Type: TypeRequiredFields, Message: "required_fields assertion declares no fields"}}
	}
	var missing []string
	for _, f := range spec.Fields {
		if _, ok := output[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []Failure{{
		Type:    TypeRequiredFields,
		Message: fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", ")),
		Details: map[string]any{"missing": missing},
	}}
}

func evalJSONSchema(spec Spec, output map[string]any, suiteDir string) []Failure {
	if spec.SchemaPath == "" {
		return []Failure{{Type: TypeJSONSchema, Message: "json_schema assertion declares no schema_path"}}
	}
	path := spec.SchemaPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(suiteDir, path)
	}
	schema, err := compileSchema(path)
	if err != nil {
		return []Failure{{Type: TypeJSONSchema, Message: fmt.Sprintf("load schema %s: %v", spec.SchemaPath, err)}}
	}

	// Round-trip output through JSON so bleve-ish internal types (e.g.
	// float64 already) are the plain any decode schema.Validate expects.
	b, err := json.Marshal(output)
	if err != nil {
		return []Failure{{Type: TypeJSONSchema, Message: fmt.Sprintf("encode output: %v", err)}}
	}
	var instance any
	if err := json.Unmarshal(b, &instance); err != nil {
		return []Failure{{Type: TypeJSONSchema, Message: fmt.Sprintf("decode output: %v", err)}}
	}

	verr := schema.Validate(instance)
	if verr == nil {
		return nil
	}
	return []Failure{jsonSchemaFailure(verr)}
}

func compileSchema(path string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	f, err := os.Open(path) // #nosec G304 -- schema path resolved against the suite directory at config load time
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	doc, err := jsonschema.UnmarshalJSON(f)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := c.AddResource(path, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(path)
}

// jsonSchemaFailure flattens a *jsonschema.ValidationError tree, sorts the
// leaf causes by instance-location path, and reports the first one, per
// SPEC_FULL.md §4.6's ordering rule.
func jsonSchemaFailure(err error) Failure {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return Failure{Type: TypeJSONSchema, Message: err.Error()}
	}
	leaves := flattenLeaves(verr)
	sort.SliceStable(leaves, func(i, j int) bool {
		return strings.Join(leaves[i].InstanceLocation, "/") < strings.Join(leaves[j].InstanceLocation, "/")
	})
	first := leaves[0]
	pointer := "/" + strings.Join(first.InstanceLocation, "/")

	details := map[string]any{"pointer": pointer}
	if req, ok := first.ErrorKind.(*kind.Required); ok {
		details["missing"] = req.Missing
		return Failure{
			Type:    TypeJSONSchema,
			Message: fmt.Sprintf("%s: missing required field(s): %s", pointer, strings.Join(req.Missing, ", ")),
			Details: details,
		}
	}
	return Failure{Type: TypeJSONSchema, Message: fmt.Sprintf("%s: %s", pointer, first.Error()), Details: details}
}

func flattenLeaves(verr *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(verr.Causes) == 0 {
		return []*jsonschema.ValidationError{verr}
	}
	var out []*jsonschema.ValidationError
	for _, c := range verr.Causes {
		out = append(out, flattenLeaves(c)...)
	}
	return out
}

func evalMustCall(spec Spec, toolCalls []string) []Failure {
	if len(spec.Tools) == 0 {
		return []Failure{{Type: TypeMustCall, Message: "must_call assertion declares no tools"}}
	}
	called := toSet(toolCalls)
	var missing []string
	for _, t := range spec.Tools {
		if _, ok := called[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	observed := "<none>"
	if len(toolCalls) > 0 {
		observed = strings.Join(toolCalls, ", ")
	}
	return []Failure{{
		Type:    TypeMustCall,
		Message: fmt.Sprintf("missing required tool call(s): %s (observed: %s)", strings.Join(missing, ", "), observed),
		Details: map[string]any{"missing": missing, "observed": toolCalls},
	}}
}

func evalMustNotCall(spec Spec, toolCalls []string) []Failure {
	if len(spec.Tools) == 0 {
		return []Failure{{Type: TypeMustNotCall, Message: "must_not_call assertion declares no tools"}}
	}
	forbidden := toSet(spec.Tools)
	var violated []string
	for _, c := range toolCalls {
		if _, ok := forbidden[c]; ok {
			violated = append(violated, c)
		}
	}
	if len(violated) == 0 {
		return nil
	}
	return []Failure{{
		Type:    TypeMustNotCall,
		Message: fmt.Sprintf("forbidden tool call(s) observed: %s", strings.Join(violated, ", ")),
		Details: map[string]any{"violated": violated},
	}}
}

func evalCallOrder(spec Spec, toolCalls []string) []Failure {
	if len(spec.Tools) == 0 {
		return []Failure{{Type: TypeCallOrder, Message: "call_order assertion declares no order"}}
	}
	if isSubsequence(spec.Tools, toolCalls) {
		return nil
	}
	observed := "<none>"
	if len(toolCalls) > 0 {
		observed = strings.Join(toolCalls, ", ")
	}
	return []Failure{{
		Type:    TypeCallOrder,
		Message: fmt.Sprintf("expected call order %s not found as a subsequence (observed: %s)", strings.Join(spec.Tools, ", "), observed),
		Details: map[string]any{"expected": spec.Tools, "observed": toolCalls},
	}}
}

func isSubsequence(want, have []string) bool {
	i := 0
	for _, h := range have {
		if i == len(want) {
			break
		}
		if h == want[i] {
			i++
		}
	}
	return i == len(want)
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, i := range items {
		out[i] = struct{}{}
	}
	return out
}
