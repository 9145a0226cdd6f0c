package emu

import "github.com/sarchlab/x86emu/insts"

// Handler applies the effect of one mnemonic to the machine state.
// RIP already points past the instruction when a handler runs.
type Handler func(s MachineState, op insts.Operand)

// Handlers maps every supported mnemonic to its handler. Each handler emits
// exactly one trace record and then executes.
type Handlers struct {
	table  [insts.OpCount]Handler
	tracer Tracer
	alu    *ALU
}

// NewHandlers builds the handler table. A nil tracer discards records.
func NewHandlers(tracer Tracer) *Handlers {
	if tracer == nil {
		tracer = NopTracer{}
	}

	h := &Handlers{tracer: tracer, alu: NewALU()}

	for _, op := range insts.ArithmeticOps {
		h.table[op] = h.traced(op, h.arithmetic(op))
	}
	for _, e := range insts.Conditions() {
		h.table[insts.CMovOp(e.Code)] = h.CMov(e.Code)
	}

	return h
}

// Lookup returns the handler for op.
func (h *Handlers) Lookup(op insts.Op) (Handler, bool) {
	if int(op) >= len(h.table) {
		return nil, false
	}
	fn := h.table[op]
	return fn, fn != nil
}

// CMov returns the conditional-move handler for cc. The move happens only
// when cc holds; flags are never written.
func (h *Handlers) CMov(cc insts.ConditionCode) Handler {
	cond := insts.Condition(cc)
	return h.traced(insts.CMovOp(cc), func(s MachineState, op insts.Operand) {
		if !cond.Holds(s) {
			return
		}
		writeLocation(s, op.Dst, readLocation(s, op.Src))
	})
}

func (h *Handlers) traced(op insts.Op, fn Handler) Handler {
	mnemonic := op.String()
	return func(s MachineState, operand insts.Operand) {
		h.tracer.Trace(mnemonic, operand)
		fn(s, operand)
	}
}

// arithmetic returns the handler of one arithmetic-group mnemonic.
func (h *Handlers) arithmetic(op insts.Op) Handler {
	return func(s MachineState, o insts.Operand) {
		w := o.Width
		dst := readLocation(s, o.Dst)
		src := readLocation(s, o.Src)

		var r ALUResult
		switch op {
		case insts.OpADD:
			r = h.alu.Add(w, dst, src, false)
		case insts.OpADC:
			r = h.alu.Add(w, dst, src, s.Flag(insts.FlagCarry))
		case insts.OpSUB, insts.OpCMP:
			r = h.alu.Sub(w, dst, src, false)
		case insts.OpSBB:
			r = h.alu.Sub(w, dst, src, s.Flag(insts.FlagCarry))
		case insts.OpAND:
			r = h.alu.And(w, dst, src)
		case insts.OpOR:
			r = h.alu.Or(w, dst, src)
		case insts.OpXOR:
			r = h.alu.Xor(w, dst, src)
		}

		r.Apply(s)

		if op != insts.OpCMP && o.Dst.Writable() {
			writeLocation(s, o.Dst, r.Value)
		}
	}
}

func effectiveAddress(s MachineState, m insts.MemoryRef) uint64 {
	return m.EffectiveAddress(func(r insts.Register) uint64 {
		return s.ReadRegister(r, insts.Width64)
	}, s.InstructionPointer())
}

func readLocation(s MachineState, l insts.Location) uint64 {
	switch l.Kind {
	case insts.LocRegister:
		return s.ReadRegister(l.Reg, l.Width)
	case insts.LocMemory:
		return s.ReadMemory(effectiveAddress(s, l.Mem), l.Width)
	case insts.LocImmediate:
		return l.Imm & l.Width.Mask()
	default:
		return 0
	}
}

func writeLocation(s MachineState, l insts.Location, v uint64) {
	switch l.Kind {
	case insts.LocRegister:
		s.WriteRegister(l.Reg, l.Width, v)
	case insts.LocMemory:
		s.WriteMemory(effectiveAddress(s, l.Mem), l.Width, v)
	}
}
