// Package hclloader reads declarative pipeline definitions from HCL files
// and translates them into the engine's model.
//
// The engine itself never parses configuration; this package is the thin
// adapter between files on disk and RegisterPipeline.
package hclloader

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/forgepipe/forgepipe/internal/ctxlog"
	"github.com/forgepipe/forgepipe/internal/fsutil"
	"github.com/forgepipe/forgepipe/internal/model"
)

// Loader parses .hcl pipeline files.
type Loader struct{}

// NewLoader creates a new HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

type fileRoot struct {
	Pipelines []*pipelineBlock `hcl:"pipeline,block"`
}

type pipelineBlock struct {
	Name        string            `hcl:"name,label"`
	Variables   cty.Value         `hcl:"variables,optional"`
	Environment map[string]string `hcl:"environment,optional"`
	Settings    *settingsBlock    `hcl:"settings,block"`
	Hooks       *hooksBlock       `hcl:"hooks,block"`
	Steps       []*stepBlock      `hcl:"step,block"`
}

type settingsBlock struct {
	Parallel         bool   `hcl:"parallel,optional"`
	Retries          int    `hcl:"retries,optional"`
	ContinueOnError  bool   `hcl:"continue_on_error,optional"`
	Timeout          string `hcl:"timeout,optional"`
	MaxParallelSteps int    `hcl:"max_parallel_steps,optional"`
}

type hooksBlock struct {
	BeforePipeline []string `hcl:"before_pipeline,optional"`
	AfterPipeline  []string `hcl:"after_pipeline,optional"`
	BeforeStep     []string `hcl:"before_step,optional"`
	AfterStep      []string `hcl:"after_step,optional"`
	OnError        []string `hcl:"on_error,optional"`
}

type stepBlock struct {
	ID              string     `hcl:"id,label"`
	Action          string     `hcl:"action"`
	Parameters      cty.Value  `hcl:"parameters,optional"`
	Condition       string     `hcl:"condition,optional"`
	Parallel        bool       `hcl:"parallel,optional"`
	DependsOn       []string   `hcl:"depends_on,optional"`
	Retries         int        `hcl:"retries,optional"`
	Timeout         string     `hcl:"timeout,optional"`
	ContinueOnError bool       `hcl:"continue_on_error,optional"`
	Tags            []string   `hcl:"tags,optional"`
}

// Load discovers .hcl files under the given paths (files or directories)
// and returns every pipeline definition found, in file order. Definitions
// are structurally translated only; graph validation happens at
// registration.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]model.PipelineDefinition, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot read definitions path %q: %w", p, err)
		}
		if info.IsDir() {
			found, err := fsutil.FindFilesByExtension(p, ".hcl")
			if err != nil {
				return nil, fmt.Errorf("scanning %q for pipeline files: %w", p, err)
			}
			files = append(files, found...)
		} else {
			files = append(files, p)
		}
	}
	logger.Debug("Discovered pipeline files.", "count", len(files))

	parser := hclparse.NewParser()
	var defs []model.PipelineDefinition
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", file, diags)
		}
		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s: %w", file, diags)
		}
		for _, pb := range root.Pipelines {
			def, err := translatePipeline(pb)
			if err != nil {
				return nil, fmt.Errorf("%s: pipeline %q: %w", file, pb.Name, err)
			}
			defs = append(defs, def)
		}
	}
	return defs, nil
}

func translatePipeline(pb *pipelineBlock) (model.PipelineDefinition, error) {
	def := model.PipelineDefinition{
		Name:        pb.Name,
		Environment: pb.Environment,
	}

	if pb.Variables != cty.NilVal && !pb.Variables.IsNull() {
		vars, err := ctyToGo(pb.Variables)
		if err != nil {
			return def, fmt.Errorf("variables: %w", err)
		}
		m, ok := vars.(map[string]any)
		if !ok {
			return def, fmt.Errorf("variables must be an object")
		}
		def.Variables = m
	}

	if pb.Settings != nil {
		def.Settings = model.Settings{
			Parallel:         pb.Settings.Parallel,
			Retries:          pb.Settings.Retries,
			ContinueOnError:  pb.Settings.ContinueOnError,
			MaxParallelSteps: pb.Settings.MaxParallelSteps,
		}
		if pb.Settings.Timeout != "" {
			d, err := time.ParseDuration(pb.Settings.Timeout)
			if err != nil {
				return def, fmt.Errorf("settings.timeout: %w", err)
			}
			def.Settings.Timeout = d
		}
	}

	if pb.Hooks != nil {
		def.Hooks = model.Hooks{
			BeforePipeline: pb.Hooks.BeforePipeline,
			AfterPipeline:  pb.Hooks.AfterPipeline,
			BeforeStep:     pb.Hooks.BeforeStep,
			AfterStep:      pb.Hooks.AfterStep,
			OnError:        pb.Hooks.OnError,
		}
	}

	for _, sb := range pb.Steps {
		step, err := translateStep(sb)
		if err != nil {
			return def, fmt.Errorf("step %q: %w", sb.ID, err)
		}
		def.Steps = append(def.Steps, step)
	}
	return def, nil
}

func translateStep(sb *stepBlock) (model.StepDefinition, error) {
	step := model.StepDefinition{
		ID:              sb.ID,
		Action:          sb.Action,
		Condition:       sb.Condition,
		Parallel:        sb.Parallel,
		DependsOn:       sb.DependsOn,
		Retries:         sb.Retries,
		ContinueOnError: sb.ContinueOnError,
		Tags:            sb.Tags,
	}
	if sb.Parameters != cty.NilVal && !sb.Parameters.IsNull() {
		params, err := ctyToGo(sb.Parameters)
		if err != nil {
			return step, fmt.Errorf("parameters: %w", err)
		}
		m, ok := params.(map[string]any)
		if !ok {
			return step, fmt.Errorf("parameters must be an object")
		}
		step.Parameters = m
	}
	if sb.Timeout != "" {
		d, err := time.ParseDuration(sb.Timeout)
		if err != nil {
			return step, fmt.Errorf("timeout: %w", err)
		}
		step.Timeout = d
	}
	return step, nil
}

// ctyToGo converts a decoded cty.Value into plain Go values the engine and
// actions work with.
func ctyToGo(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	if val.Type().IsPrimitiveType() {
		switch val.Type() {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			f, _ := val.AsBigFloat().Float64()
			if f == float64(int64(f)) {
				return int64(f), nil
			}
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", val.Type().FriendlyName())
		}
	}
	if val.Type().IsObjectType() || val.Type().IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			converted, err := ctyToGo(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = converted
		}
		return out, nil
	}
	if val.Type().IsTupleType() || val.Type().IsListType() {
		var out []any
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			converted, err := ctyToGo(v)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type for conversion: %s", val.Type().FriendlyName())
}
