package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panyam/pfa/decl"
	"github.com/panyam/pfa/loader"
)

// Program is a compiled document.  Engines built from the same program share
// its "shared" cells and pools and nothing else.
type Program struct {
	config  *EngineConfig
	options Options

	input  *Type
	output *Type

	begin  evalFn
	action evalFn
	end    evalFn

	metadata Value
	zero     Value

	sharedCells map[string]*Cell
	sharedPools map[string]*Pool

	idgen IDGen
}

// Compile type checks a document and compiles it.  Type errors are returned
// joined; loader.IsSemantic and errors.As find them.
func Compile(cfg *EngineConfig, opts Options) (p *Program, err error) {
	opts, err = opts.withDocument(cfg.Options)
	if err != nil {
		return nil, err
	}
	inf := loader.NewInference(cfg, opts.Library, opts.Names)
	if !inf.Eval() {
		return nil, errors.Join(inf.Errors...)
	}

	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(internalError)
			if !ok {
				panic(r)
			}
			p, err = nil, fmt.Errorf("compiling %q: %w", cfg.Name, ie.err)
		}
	}()

	p = &Program{
		config:      cfg,
		options:     opts,
		input:       cfg.Input.ResolvedType(),
		output:      cfg.Output.ResolvedType(),
		zero:        decl.NullValue,
		sharedCells: map[string]*Cell{},
		sharedPools: map[string]*Pool{},
		idgen:       &SimpleIDGen{},
	}

	metadata := make(map[string]Value, len(cfg.Metadata))
	for k, v := range cfg.Metadata {
		metadata[k] = decl.StringValue(v)
	}
	p.metadata = decl.MapValue(loader.MetadataType, metadata)
	if cfg.Method == decl.MethodFold {
		p.zero, err = decl.FromJSON(p.output, cfg.Zero)
		if err != nil {
			return nil, fmt.Errorf("zero: %w", err)
		}
	}

	c := &compiler{lib: opts.Library, fcns: map[string]*compiledFcn{}}
	for name, def := range cfg.Fcns {
		c.fcns[loader.UserPrefix+name] = c.compileFcnDef(loader.UserPrefix+name, def)
	}
	for name, def := range cfg.Fcns {
		c.fcns[loader.UserPrefix+name].body = c.compileBlock(def.Body)
	}
	p.begin = c.compileBlock(cfg.Begin)
	p.action = c.compileBlock(cfg.Action)
	p.end = c.compileBlock(cfg.End)

	for name, d := range cfg.Cells {
		if d.Shared {
			if p.sharedCells[name], err = newCell(d); err != nil {
				return nil, err
			}
		}
	}
	for name, d := range cfg.Pools {
		if d.Shared {
			if p.sharedPools[name], err = newPool(d); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// CompileDocument reads a JSON or YAML document and returns its first
// engine.
func CompileDocument(src []byte, opts Options) (*Engine, error) {
	cfg, err := loader.Read(src)
	if err != nil {
		return nil, err
	}
	p, err := Compile(cfg, opts)
	if err != nil {
		return nil, err
	}
	return p.NewEngine()
}

func (p *Program) Name() string     { return p.config.Name }
func (p *Program) Method() string   { return p.config.Method }
func (p *Program) InputType() *Type { return p.input }

func (p *Program) OutputType() *Type { return p.output }

// NewEngine builds an instance with fresh unshared storage.
func (p *Program) NewEngine() (*Engine, error) {
	e := &Engine{
		program: p,
		cells:   make(map[string]*Cell, len(p.config.Cells)),
		pools:   make(map[string]*Pool, len(p.config.Pools)),
		tally:   p.zero,
		sink:    p.options.LogSink,
	}
	e.id, e.instance = p.idgen.NextID(p.config.Name)
	if e.sink == nil {
		e.sink = LoggerSink(globalLogger)
	}
	for name, d := range p.config.Cells {
		if shared, ok := p.sharedCells[name]; ok {
			e.cells[name] = shared
			continue
		}
		c, err := newCell(d)
		if err != nil {
			return nil, err
		}
		e.cells[name] = c
	}
	for name, d := range p.config.Pools {
		if shared, ok := p.sharedPools[name]; ok {
			e.pools[name] = shared
			continue
		}
		pool, err := newPool(d)
		if err != nil {
			return nil, err
		}
		e.pools[name] = pool
	}
	return e, nil
}

// Engine is one instance of a program.  Calls on an engine are serialized;
// run engines concurrently to process in parallel.
type Engine struct {
	program  *Program
	id       string
	instance int

	mu     sync.Mutex
	cells  map[string]*Cell
	pools  map[string]*Pool
	tally  Value
	sink   LogSink
	tracer *ExecutionTracer

	began           bool
	ended           bool
	actionsStarted  int64
	actionsFinished int64
}

func (e *Engine) ID() string        { return e.id }
func (e *Engine) Instance() int     { return e.instance }
func (e *Engine) Program() *Program { return e.program }

func (e *Engine) cell(name string) *Cell {
	c, ok := e.cells[name]
	if !ok {
		ensureNoErr(fmt.Errorf("unknown cell %q", name))
	}
	return c
}

func (e *Engine) pool(name string) *Pool {
	p, ok := e.pools[name]
	if !ok {
		ensureNoErr(fmt.Errorf("unknown pool %q", name))
	}
	return p
}

func (e *Engine) log(namespace, line string) {
	e.sink(namespace, line)
	if e.tracer != nil {
		e.tracer.Log(namespace, line)
	}
}

// SetTracer records the routines and user function calls of this engine
// into t.  A nil tracer turns tracing off.
func (e *Engine) SetTracer(t *ExecutionTracer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracer = t
}

func (e *Engine) Tracer() *ExecutionTracer { return e.tracer }

// Cell returns the current value of a cell.
func (e *Engine) Cell(name string) (Value, bool) {
	c, ok := e.cells[name]
	if !ok {
		return Value{}, false
	}
	return c.Snapshot(), true
}

// PoolItem returns the current value of one pool entry.
func (e *Engine) PoolItem(name, key string) (Value, bool) {
	p, ok := e.pools[name]
	if !ok {
		return Value{}, false
	}
	return p.Snapshot(key)
}

// Tally is the running result of a fold engine.
func (e *Engine) Tally() Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tally
}

func (e *Engine) symbols(withInput bool, input Value) map[string]Value {
	out := map[string]Value{
		"name":            decl.StringValue(e.program.config.Name),
		"instance":        decl.IntValue(int64(e.instance)),
		"metadata":        e.program.metadata,
		"actionsStarted":  decl.LongValue(e.actionsStarted),
		"actionsFinished": decl.LongValue(e.actionsFinished),
	}
	if withInput {
		out["input"] = input
	}
	if e.program.config.Method == decl.MethodFold {
		out["tally"] = e.tally
	}
	return out
}

// run executes one routine, converting failures into errors and restoring
// rollback storage when it fails.
func (e *Engine) run(ctx context.Context, routine string, body evalFn, symbols map[string]Value) (out Value, err error) {
	st := newExecState(ctx, e, routine)
	if e.tracer != nil {
		e.tracer.Enter(routine)
		defer func() { e.tracer.Exit(routine, out, err) }()
	}
	// runs after the rollback below
	defer st.release()
	defer func() {
		if r := recover(); r != nil {
			st.rollback()
			err = asFailure(routine, r)
		}
	}()
	// a context that is already done never starts the routine
	st.checkDeadline()
	root := decl.NewEnv[Value](nil)
	root.SetMany(symbols)
	return body(root.Push(), st), nil
}

// Begin runs the begin routine.  It may only run once; Action runs it
// implicitly if it has not been run yet.
func (e *Engine) Begin() error {
	return e.BeginContext(context.Background())
}

func (e *Engine) BeginContext(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return ErrEngineEnded
	}
	if e.began {
		return ErrAlreadyBegun
	}
	return e.begin(ctx)
}

func (e *Engine) begin(ctx context.Context) error {
	e.began = true
	_, err := e.run(ctx, routineBegin, e.program.begin, e.symbols(false, Value{}))
	if err != nil {
		Debug("engine %s: begin failed: %v", e.id, err)
	}
	return err
}

// Action processes one input given as a JSON-shaped datum (as produced by
// encoding/json with UseNumber) or as a decl.Value, and returns the output
// as a JSON-shaped datum.
func (e *Engine) Action(input any) (any, error) {
	return e.ActionContext(context.Background(), input)
}

// ActionContext is Action bounded by ctx as well as by the action timeout.
func (e *Engine) ActionContext(ctx context.Context, input any) (any, error) {
	var in Value
	if v, ok := input.(Value); ok {
		coerced, ok := decl.Coerce(v, e.program.input)
		if !ok {
			return nil, &RuntimeFailure{Message: fmt.Sprintf("input %s is not a %s", v, e.program.input), Code: CodeBadInput, Routine: routineAction}
		}
		in = coerced
	} else {
		v, err := decl.FromJSON(e.program.input, input)
		if err != nil {
			return nil, &RuntimeFailure{Message: err.Error(), Code: CodeBadInput, Routine: routineAction}
		}
		in = v
	}
	out, err := e.ActionValue(ctx, in)
	if err != nil {
		return nil, err
	}
	return decl.ToJSON(e.program.output, out), nil
}

// ActionValue runs the action routine on a value of the input type.
func (e *Engine) ActionValue(ctx context.Context, input Value) (Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return Value{}, ErrEngineEnded
	}
	if !e.began {
		if err := e.begin(ctx); err != nil {
			return Value{}, err
		}
	}

	e.actionsStarted++
	out, err := e.run(ctx, routineAction, e.program.action, e.symbols(true, input))
	if err != nil {
		Debug("engine %s: action %d failed: %v", e.id, e.actionsStarted, err)
		return Value{}, err
	}
	out = widen(out, e.program.output)
	if e.program.config.Method == decl.MethodFold {
		e.tally = out
	}
	e.actionsFinished++
	return out, nil
}

// End runs the end routine.  The engine accepts no calls afterwards.
func (e *Engine) End() error {
	return e.EndContext(context.Background())
}

func (e *Engine) EndContext(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return ErrEngineEnded
	}
	e.ended = true
	_, err := e.run(ctx, routineEnd, e.program.end, e.symbols(false, Value{}))
	return err
}
