package action

import (
	"fmt"

	"pairgen/internal/service/ai"

	"gocv.io/x/gocv"
)

type step struct {
	name      string
	transform Transform
}

// Pipeline is a validated, ordered chain of transforms.
type Pipeline struct {
	steps []step
	cx    *Context
}

// Compile resolves names against the registry and checks that cx provides
// every capability they need. It never touches image data, so a bad action
// list is reported before any frame is read.
func (r *Registry) Compile(names []string, cx *Context) (*Pipeline, error) {
	p := &Pipeline{cx: cx}
	for _, name := range names {
		e, ok := r.lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownAction, name, r.Names())
		}
		for _, c := range e.needs {
			if !cx.Has(c) {
				return nil, fmt.Errorf("%w: action %q needs a %s", ErrMissingCapability, name, c)
			}
		}
		p.steps = append(p.steps, step{name: name, transform: e.transform})
	}
	return p, nil
}

// Names returns the compiled action names in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.name
	}
	return names
}

// Apply folds img through the steps left to right. The input is left
// untouched and every intermediate image is closed; the caller owns the
// result. Failures are returned as *ai.TransformError.
func (p *Pipeline) Apply(img gocv.Mat) (gocv.Mat, error) {
	current := img.Clone()
	for _, s := range p.steps {
		next, err := s.transform(current, p.cx)
		current.Close()
		if err != nil {
			next.Close()
			return gocv.NewMat(), &ai.TransformError{Action: s.name, Err: err}
		}
		if next.Empty() {
			next.Close()
			return gocv.NewMat(), &ai.TransformError{Action: s.name, Err: fmt.Errorf("empty result")}
		}
		current = next
	}
	return current, nil
}
