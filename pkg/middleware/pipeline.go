package middleware

import (
	"net/http"

	"github.com/platinummonkey/campusgate/pkg/observability"
)

// Stage is one step of the request pipeline. A stage either returns the
// request to hand to the next stage, typically carrying new context values,
// or an error that rejects the request.
type Stage interface {
	Name() string
	Run(r *http.Request) (*http.Request, error)
}

type stageFunc struct {
	name string
	fn   func(*http.Request) (*http.Request, error)
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Run(r *http.Request) (*http.Request, error) { return s.fn(r) }

// StageFunc adapts a function to the Stage interface
func StageFunc(name string, fn func(*http.Request) (*http.Request, error)) Stage {
	return stageFunc{name: name, fn: fn}
}

// ErrorWriter renders a rejection
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Pipeline runs stages in order and stops at the first failure. It is
// immutable; With returns an extended copy.
type Pipeline struct {
	stages     []Stage
	writeError ErrorWriter
	metrics    *observability.Metrics
}

// NewPipeline creates a pipeline that reports failures through writeError
func NewPipeline(writeError ErrorWriter, stages ...Stage) *Pipeline {
	return &Pipeline{
		stages:     append([]Stage(nil), stages...),
		writeError: writeError,
	}
}

// WithMetrics returns a copy that counts rejections per stage
func (p *Pipeline) WithMetrics(metrics *observability.Metrics) *Pipeline {
	cp := *p
	cp.metrics = metrics
	return &cp
}

// With returns a copy with stages appended
func (p *Pipeline) With(stages ...Stage) *Pipeline {
	cp := *p
	cp.stages = make([]Stage, 0, len(p.stages)+len(stages))
	cp.stages = append(cp.stages, p.stages...)
	cp.stages = append(cp.stages, stages...)
	return &cp
}

// StageNames lists the stages in run order
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Then wraps handler so it only runs once every stage has passed
func (p *Pipeline) Then(handler http.Handler) http.Handler {
	stages := p.stages
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, stage := range stages {
			next, err := stage.Run(r)
			if err != nil {
				observability.FromContext(r.Context()).
					WithFields(map[string]interface{}{
						"stage":  stage.Name(),
						"reason": err.Error(),
						"route":  observability.RouteLabel(r),
					}).
					Debug("Request rejected")
				p.metrics.RecordRejection(stage.Name())
				p.writeError(w, r, err)
				return
			}
			r = next
		}
		handler.ServeHTTP(w, r)
	})
}

// ThenFunc is Then for a handler function
func (p *Pipeline) ThenFunc(fn http.HandlerFunc) http.Handler {
	return p.Then(fn)
}
