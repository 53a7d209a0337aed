package draw

import (
	"errors"
	"math"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/debug"
	"github.com/gogpu/gpucmd/internal/logging"
	"github.com/gogpu/gpucmd/pipeline"
)

// ErrAlreadyFlushed is returned by Flush on a list that was flushed before.
var ErrAlreadyFlushed = errors.New("draw: list already flushed")

// Stats counts recording outcomes.
type Stats struct {
	Recorded int // commands passed to Record
	Dropped  int // commands with non-finite bounds
	Merged   int // commands absorbed into another
	Chained  int // chain concatenations
	Forward  int // chains moved later by Close
}

// span is a linked run of commands.
type span struct {
	head, tail Ref
}

func (s span) empty() bool { return s.head == NoRef }

// chain is a span plus the state every command in it shares.
type chain struct {
	span
	bounds   gpucore.Rect
	analysis pipeline.Analysis
	clip     *pipeline.AppliedClip
	dstProxy *gpucore.TextureProxy
}

// Option configures a List.
type Option func(*List)

// WithClampMode sets how known colors are clamped during finalize.
func WithClampMode(m gpucore.ClampMode) Option {
	return func(l *List) { l.clamp = m }
}

// WithCapacity preallocates room for n commands.
func WithCapacity(n int) Option {
	return func(l *List) { l.cmds = make([]Command, 0, n) }
}

// List records commands for one render target. It is not safe for
// concurrent use.
type List struct {
	caps  *gpucore.Caps
	clamp gpucore.ClampMode

	cmds   []Command
	chains []chain
	total  gpucore.Rect

	closed, flushed bool
	stats           Stats
}

// NewList creates an empty list. A nil caps uses gpucore.DefaultCaps.
func NewList(caps *gpucore.Caps, opts ...Option) *List {
	if caps == nil {
		caps = gpucore.DefaultCaps()
	}
	l := &List{caps: caps}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Command returns the command at ref.
func (l *List) Command(ref Ref) *Command { return &l.cmds[ref] }

// Live reports whether the command at ref still draws on its own, that is
// it was not merged into another.
func (l *List) Live(ref Ref) bool { return !l.cmds[ref].dead }

// Stats returns the recording counters.
func (l *List) Stats() Stats { return l.stats }

// Bounds returns the union of every recorded command's bounds.
func (l *List) Bounds() gpucore.Rect { return l.total }

// Chains returns the commands of every non-empty chain, in execution
// order.
func (l *List) Chains() [][]Ref {
	var out [][]Ref
	for i := range l.chains {
		if l.chains[i].empty() {
			continue
		}
		var refs []Ref
		for r := l.chains[i].head; r != NoRef; r = l.cmds[r].next {
			refs = append(refs, r)
		}
		out = append(out, refs)
	}
	return out
}

// Record adds cmd, drawn with clip (nil when unclipped). dstProxy is the
// destination copy used when the paint reads the destination through a
// texture. It returns the slot cmd was stored in.
func (l *List) Record(cmd Command, clip *pipeline.AppliedClip, dstProxy *gpucore.TextureProxy) Ref {
	if l.closed {
		panic("draw: Record on a closed list")
	}
	l.stats.Recorded++
	if !isFinite(cmd.bounds) {
		l.stats.Dropped++
		return NoRef
	}
	l.total = l.total.Join(cmd.bounds)

	analysis := cmd.op.finalize(l.caps, clip, l.clamp)
	if !analysis.RequiresDstTexture {
		dstProxy = nil
	}
	ref := Ref(len(l.cmds))
	l.cmds = append(l.cmds, cmd)
	bounds := cmd.bounds

	n := min(l.caps.MaxChainLookback, len(l.chains))
	for i := 0; i < n; i++ {
		c := &l.chains[len(l.chains)-1-i]
		s := span{ref, ref}
		if l.tryConcat(c, &s, analysis, clip, dstProxy, bounds) {
			return ref
		}
		// Moving further back would reorder overlapping draws.
		if !canReorder(c.bounds, bounds) {
			break
		}
	}
	l.chains = append(l.chains, chain{
		span:     span{ref, ref},
		bounds:   bounds,
		analysis: analysis,
		clip:     clip,
		dstProxy: dstProxy,
	})
	return ref
}

// tryConcat appends s onto c, merging where possible. On success s is
// left empty.
func (l *List) tryConcat(c *chain, s *span, analysis pipeline.Analysis, clip *pipeline.AppliedClip,
	dstProxy *gpucore.TextureProxy, bounds gpucore.Rect) bool {
	if l.cmds[c.head].kind != l.cmds[s.head].kind ||
		!c.clip.Equal(clip) ||
		c.analysis.RequiresNonOverlappingDraws != analysis.RequiresNonOverlappingDraws ||
		// A barrier or dst copy sits between such draws, so even
		// touching bounds rule out combining.
		(c.analysis.RequiresNonOverlappingDraws && c.bounds.TouchesOrOverlaps(bounds)) ||
		c.analysis.RequiresDstTexture != analysis.RequiresDstTexture ||
		(c.analysis.RequiresDstTexture && c.dstProxy != dstProxy) {
		return false
	}

	first := true
	for !s.empty() {
		switch l.combine(c.tail, s.head) {
		case CannotCombine:
			// Chaining is transitive, so only the first pair can refuse.
			debug.Assert(first, "draw: chain refused after first command")
			return false
		case MayChain:
			l.stats.Chained++
			c.span = l.doConcat(c.span, *s)
			*s = span{NoRef, NoRef}
		case Merged:
			l.kill(l.popHead(s))
		}
		first = false
	}
	c.bounds = c.bounds.Join(bounds)
	return true
}

// doConcat joins two chainable spans, merging commands of b into a where
// paint order allows. It walks b from head to tail; each head either
// merges backward into a command of a, absorbs a command of a moved
// forward, or becomes a's new tail.
func (l *List) doConcat(a, b span) span {
	origATail := a.tail
	var skip gpucore.Rect
	for !b.empty() {
		checks := 0
		merged := false
		noSkip := origATail == a.tail
		canBackward := noSkip || canReorder(l.cmds[b.head].bounds, skip)
		forwardBounds := skip
		for x := origATail; x != NoRef; {
			canForward := x == a.tail || canReorder(l.cmds[x].bounds, forwardBounds)
			if canForward || canBackward {
				r := l.combine(x, b.head)
				debug.Assert(r != CannotCombine, "draw: chained commands refused to combine")
				merged = r == Merged
			}
			if merged {
				if canBackward {
					l.kill(l.popHead(&b))
				} else {
					// b's head now lives in x; x takes its place in b.
					if x == origATail {
						origATail = l.cmds[x].prev
					}
					l.remove(&a, x)
					l.kill(l.popHead(&b))
					l.pushHead(&b, x)
					if a.empty() {
						return b
					}
				}
				break
			}
			if checks++; checks == l.caps.MaxMergeDistance {
				break
			}
			forwardBounds = forwardBounds.Join(l.cmds[x].bounds)
			canBackward = canBackward && canReorder(l.cmds[b.head].bounds, l.cmds[x].bounds)
			x = l.cmds[x].prev
		}
		if !merged {
			h := l.popHead(&b)
			l.pushTail(&a, h)
			skip = skip.Join(l.cmds[h].bounds)
		}
	}
	return a
}

// combine compares the commands at a and b, merging b into a on success.
func (l *List) combine(a, b Ref) CombineResult {
	ca, cb := &l.cmds[a], &l.cmds[b]
	if ca.kind != cb.kind {
		return CannotCombine
	}
	args := combineArgs{caps: l.caps, thisChain: l.chainCount(a), thatChain: l.chainCount(b)}
	qa, aOK := ca.op.(aaChained)
	qb, bOK := cb.op.(aaChained)
	var aaA, aaB gpucore.AAType
	if aOK && bOK {
		aaA, aaB = qa.aaType(), qb.aaType()
	}
	r := ca.op.combine(cb.op, &args)
	if r == Merged {
		ca.bounds = ca.bounds.Join(cb.bounds)
		l.stats.Merged++
		if aOK && bOK && (qa.aaType() != aaA || qa.aaType() != aaB) {
			l.propagateAA(a, qa.aaType())
			l.propagateAA(b, qa.aaType())
		}
	}
	return r
}

// aaChained is implemented by variants whose AA type must agree across
// every command of a chain.
type aaChained interface {
	aaType() gpucore.AAType
	setAAType(aa gpucore.AAType)
}

// propagateAA sets aa on every command linked with ref.
func (l *List) propagateAA(ref Ref, aa gpucore.AAType) {
	for l.cmds[ref].prev != NoRef {
		ref = l.cmds[ref].prev
	}
	for ; ref != NoRef; ref = l.cmds[ref].next {
		if c, ok := l.cmds[ref].op.(aaChained); ok {
			c.setAAType(aa)
		}
	}
}

// chainCount sums the geometry count of every command linked with ref.
func (l *List) chainCount(ref Ref) int {
	for l.cmds[ref].prev != NoRef {
		ref = l.cmds[ref].prev
	}
	n := 0
	for ; ref != NoRef; ref = l.cmds[ref].next {
		n += l.cmds[ref].op.count()
	}
	return n
}

func (l *List) kill(ref Ref) { l.cmds[ref].dead = true }

func (l *List) popHead(s *span) Ref {
	h := s.head
	next := l.cmds[h].next
	l.cmds[h].next = NoRef
	if next == NoRef {
		*s = span{NoRef, NoRef}
	} else {
		l.cmds[next].prev = NoRef
		s.head = next
	}
	return h
}

func (l *List) pushHead(s *span, ref Ref) {
	l.cmds[ref].prev = NoRef
	l.cmds[ref].next = s.head
	if s.empty() {
		s.tail = ref
	} else {
		l.cmds[s.head].prev = ref
	}
	s.head = ref
}

func (l *List) pushTail(s *span, ref Ref) {
	l.cmds[ref].next = NoRef
	l.cmds[ref].prev = s.tail
	if s.empty() {
		s.head = ref
	} else {
		l.cmds[s.tail].next = ref
	}
	s.tail = ref
}

func (l *List) remove(s *span, ref Ref) {
	c := &l.cmds[ref]
	if c.prev != NoRef {
		l.cmds[c.prev].next = c.next
	} else {
		s.head = c.next
	}
	if c.next != NoRef {
		l.cmds[c.next].prev = c.prev
	} else {
		s.tail = c.prev
	}
	c.prev, c.next = NoRef, NoRef
}

// Close ends recording and runs the forward combine pass. Flush closes
// the list if needed.
func (l *List) Close() {
	if l.closed {
		return
	}
	l.closed = true
	l.forwardCombine()
}

// forwardCombine tries to move each chain later onto a compatible chain
// that follows it within the lookback distance.
func (l *List) forwardCombine() {
	for i := 0; i < len(l.chains)-1; i++ {
		c := &l.chains[i]
		if c.empty() {
			continue
		}
		last := min(i+l.caps.MaxChainLookback, len(l.chains)-1)
		for j := i + 1; j <= last; j++ {
			cand := &l.chains[j]
			if cand.empty() {
				continue
			}
			if l.prependChain(cand, c) {
				l.stats.Forward++
				break
			}
			if !canReorder(c.bounds, cand.bounds) {
				break
			}
		}
	}
}

// prependChain concatenates that's commands in front of c's. The result
// lives in c; that is left empty.
func (l *List) prependChain(c, that *chain) bool {
	s := c.span
	if !l.tryConcat(that, &s, c.analysis, c.clip, c.dstProxy, c.bounds) {
		return false
	}
	c.span = that.span
	c.bounds = that.bounds
	*that = chain{span: span{NoRef, NoRef}}
	return true
}

// VisitProxies calls fn for every texture referenced by the recorded
// commands, their destination copies and their clips.
func (l *List) VisitProxies(fn func(*gpucore.TextureProxy)) {
	for i := range l.chains {
		c := &l.chains[i]
		if c.empty() {
			continue
		}
		for r := c.head; r != NoRef; r = l.cmds[r].next {
			l.cmds[r].op.visitProxies(fn)
		}
		if c.dstProxy != nil {
			fn(c.dstProxy)
		}
		c.clip.VisitProxies(fn)
	}
}

// Flush closes the list and executes every surviving command through
// fs.Pass.
func (l *List) Flush(fs *FlushState) error {
	if l.flushed {
		return ErrAlreadyFlushed
	}
	l.Close()
	l.flushed = true
	fs.init()
	defer fs.release()

	live := make([]*chain, 0, len(l.chains))
	for i := range l.chains {
		if !l.chains[i].empty() {
			live = append(live, &l.chains[i])
		}
	}

	// A leading full-target clear becomes the pass load op.
	var clearColor gpucore.Color
	if len(live) > 0 {
		if cl, ok := l.cmds[live[0].head].op.(*Clear); ok && !cl.scissor.Enabled {
			fs.loadOp = loadOpClear
			clearColor = cl.color
			live = live[1:]
		}
	}

	states := make([]chainState, len(live))
	for i, c := range live {
		states[i] = chainState{list: l, head: c.head, bounds: c.bounds, clip: c.clip, dstProxy: c.dstProxy}
		l.cmds[c.head].op.prepare(fs, &states[i])
	}

	fs.Pass.Begin(fs.loadOp, clearColor)
	executed := 0
	for i := range states {
		ch := &states[i]
		l.cmds[ch.head].op.execute(fs, ch)
		executed += ch.len()
	}
	fs.Pass.End()

	if debug.Enabled {
		alive := 0
		for i := range l.cmds {
			if !l.cmds[i].dead {
				alive++
			}
		}
		if fs.loadOp == loadOpClear {
			executed++
		}
		debug.Assertf(executed == alive, "draw: executed %d of %d commands", executed, alive)
	}
	logging.Logger().Debug("draw: flushed", "commands", len(l.cmds), "chains", len(states),
		"merged", l.stats.Merged, "chained", l.stats.Chained)
	return nil
}

// chainState is what a chain's head sees during flush.
type chainState struct {
	list     *List
	head     Ref
	bounds   gpucore.Rect
	clip     *pipeline.AppliedClip
	dstProxy *gpucore.TextureProxy
}

// each calls fn for every command of the chain, head first.
func (ch *chainState) each(fn func(*Command)) {
	for r := ch.head; r != NoRef; r = ch.list.cmds[r].next {
		fn(&ch.list.cmds[r])
	}
}

func (ch *chainState) len() int {
	n := 0
	ch.each(func(*Command) { n++ })
	return n
}

// scissor returns the clip scissor when the pipeline enables it.
func (ch *chainState) scissor() (gpucore.ScissorRect, bool) {
	return ch.clip.ScissorRect()
}

// unbounded is the bounds of a command covering the whole target.
var unbounded = gpucore.Rect{Left: -math.MaxFloat32, Top: -math.MaxFloat32, Right: math.MaxFloat32, Bottom: math.MaxFloat32}
